// Package storage holds the immutable results returned by Storage category
// operations.
//
// Results created before paths were introduced only carried a key. To stay
// compatible, path-bearing results keep the key as a deprecated second field;
// equality compares both fields while the hash is derived from the key alone.
// The asymmetry is deliberate: callers that stored hashes of earlier results
// still see the same values.
package storage

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// TransferResult is implemented by results that identify a transferred item.
type TransferResult interface {
	Path() string
}

// legacyHash hashes the deprecated key field, or returns 0 when it is absent.
func legacyHash(key string) uint64 {
	if key == "" {
		return 0
	}
	return xxhash.Sum64String(key)
}

// UploadResult is the result of an upload operation.
type UploadResult struct {
	path string
	key  string
}

// NewUploadResult creates an upload result. Intended for plugin
// implementations rather than host applications.
func NewUploadResult(path, key string) UploadResult {
	return UploadResult{path: path, key: key}
}

// UploadResultFromKey creates an upload result from a key alone.
//
// Deprecated: the resulting Path is the key verbatim, not the full path of
// the uploaded item.
func UploadResultFromKey(key string) UploadResult {
	return UploadResult{path: key, key: key}
}

// Path returns the full path of the uploaded item.
func (r UploadResult) Path() string {
	return r.path
}

// Key returns the key of the uploaded item.
//
// Deprecated: transfers addressed by path have no key; Key returns the full
// path for them. Use Path.
func (r UploadResult) Key() string {
	return r.key
}

// Equal reports whether both path and key match.
func (r UploadResult) Equal(other UploadResult) bool {
	return r.key == other.key && r.path == other.path
}

// Hash is derived from the key only. Results with equal keys and different
// paths hash equal even though they are not Equal.
func (r UploadResult) Hash() uint64 {
	return legacyHash(r.key)
}

// RemoveResult is the result of a remove operation. It follows the same
// path/key contract as UploadResult.
type RemoveResult struct {
	path string
	key  string
}

// NewRemoveResult creates a remove result.
func NewRemoveResult(path, key string) RemoveResult {
	return RemoveResult{path: path, key: key}
}

// RemoveResultFromKey creates a remove result from a key alone.
//
// Deprecated: the resulting Path is the key verbatim.
func RemoveResultFromKey(key string) RemoveResult {
	return RemoveResult{path: key, key: key}
}

// Path returns the full path of the removed item.
func (r RemoveResult) Path() string {
	return r.path
}

// Key returns the key of the removed item.
//
// Deprecated: use Path.
func (r RemoveResult) Key() string {
	return r.key
}

// Equal reports whether both path and key match.
func (r RemoveResult) Equal(other RemoveResult) bool {
	return r.key == other.key && r.path == other.path
}

// Hash is derived from the key only.
func (r RemoveResult) Hash() uint64 {
	return legacyHash(r.key)
}

// GetURLResult carries a pre-signed URL for an item.
type GetURLResult struct {
	url     string
	expires time.Time
}

// NewGetURLResult creates a URL result.
func NewGetURLResult(url string, expires time.Time) GetURLResult {
	return GetURLResult{url: url, expires: expires}
}

func (r GetURLResult) URL() string        { return r.url }
func (r GetURLResult) Expires() time.Time { return r.expires }

// Equal reports whether URL and expiry match.
func (r GetURLResult) Equal(other GetURLResult) bool {
	return r.url == other.url && r.expires.Equal(other.expires)
}

// Item describes one stored object.
type Item struct {
	path         string
	key          string
	size         int64
	lastModified time.Time
	eTag         string
}

// NewItem creates a listed item.
func NewItem(path, key string, size int64, lastModified time.Time, eTag string) Item {
	return Item{path: path, key: key, size: size, lastModified: lastModified, eTag: eTag}
}

func (i Item) Path() string            { return i.path }
func (i Item) Size() int64             { return i.size }
func (i Item) LastModified() time.Time { return i.lastModified }
func (i Item) ETag() string            { return i.eTag }

// Key returns the item key.
//
// Deprecated: use Path.
func (i Item) Key() string {
	return i.key
}

// ListResult is the result of a list operation.
type ListResult struct {
	items     []Item
	nextToken string
}

// NewListResult creates a list result. The items slice is copied.
func NewListResult(items []Item, nextToken string) ListResult {
	copied := make([]Item, len(items))
	copy(copied, items)
	return ListResult{items: copied, nextToken: nextToken}
}

// Items returns a copy of the listed items.
func (r ListResult) Items() []Item {
	copied := make([]Item, len(r.items))
	copy(copied, r.items)
	return copied
}

// NextToken returns the continuation token, empty on the last page.
func (r ListResult) NextToken() string {
	return r.nextToken
}
