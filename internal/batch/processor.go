// Package batch buffers items and delivers them in bounded batches.
package batch

import (
	"context"
	"fmt"
	"sync"
)

// DeliverFunc delivers one batch. A batch is never empty and never larger
// than Config.MaxBatchSize.
type DeliverFunc[T any] func(ctx context.Context, items []T) error

// Config contains configuration for the batch processor
type Config struct {
	MaxBatchSize int `yaml:"max_batch_size"` // Maximum items per delivery
	MaxPending   int `yaml:"max_pending"`    // Items kept when delivery keeps failing
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize: 100,
		MaxPending:   1000,
	}
}

// Stats tracks processor statistics
type Stats struct {
	Recorded  int64 `json:"recorded"`
	Delivered int64 `json:"delivered"`
	Batches   int64 `json:"batches"`
	Failures  int64 `json:"failures"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
}

// Option customises a Processor.
type Option func(*options)

type options struct {
	onError func(error)
}

// WithErrorHandler sets the function called when a delivery started by
// Record fails. The failed items stay queued.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// Processor buffers items until a full batch is available or Flush is
// called. Failed batches go back to the front of the queue; once more than
// MaxPending items are queued the oldest are dropped.
type Processor[T any] struct {
	config  Config
	deliver DeliverFunc[T]
	onError func(error)

	mu      sync.Mutex
	pending []T
	stats   Stats

	// serialises deliveries so batches leave in record order
	flushMu sync.Mutex
}

// NewProcessor creates a processor. Zero config fields take their defaults.
func NewProcessor[T any](config Config, deliver DeliverFunc[T], opts ...Option) (*Processor[T], error) {
	if deliver == nil {
		return nil, fmt.Errorf("batch: deliver function is required")
	}
	defaults := DefaultConfig()
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = defaults.MaxBatchSize
	}
	if config.MaxPending <= 0 {
		config.MaxPending = defaults.MaxPending
	}
	if config.MaxPending < config.MaxBatchSize {
		config.MaxPending = config.MaxBatchSize
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return &Processor[T]{
		config:  config,
		deliver: deliver,
		onError: o.onError,
	}, nil
}

// Record queues an item and delivers once a full batch is waiting. It
// fails only when the item was not queued. A failed delivery keeps the
// items queued for the next Flush and is passed to the error handler.
func (p *Processor[T]) Record(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.pending = append(p.pending, item)
	p.stats.Recorded++
	p.trimLocked()
	full := len(p.pending) >= p.config.MaxBatchSize
	p.mu.Unlock()

	if !full {
		return nil
	}
	if err := p.drain(ctx, true); err != nil && p.onError != nil {
		p.onError(err)
	}
	return nil
}

// Flush delivers everything queued. It stops at the first failed batch.
func (p *Processor[T]) Flush(ctx context.Context) error {
	return p.drain(ctx, false)
}

// Pending returns the number of queued items.
func (p *Processor[T]) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// GetStats returns current processor statistics
func (p *Processor[T]) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Pending = len(p.pending)
	return s
}

func (p *Processor[T]) drain(ctx context.Context, fullOnly bool) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.mu.Lock()
		n := len(p.pending)
		if n == 0 || (fullOnly && n < p.config.MaxBatchSize) {
			p.mu.Unlock()
			return nil
		}
		if n > p.config.MaxBatchSize {
			n = p.config.MaxBatchSize
		}
		items := make([]T, n)
		copy(items, p.pending[:n])
		p.pending = p.pending[n:]
		p.mu.Unlock()

		if err := p.deliver(ctx, items); err != nil {
			p.requeue(items)
			return err
		}

		p.mu.Lock()
		p.stats.Batches++
		p.stats.Delivered += int64(len(items))
		p.mu.Unlock()
	}
}

func (p *Processor[T]) requeue(items []T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Failures++
	p.pending = append(items, p.pending...)
	p.trimLocked()
}

func (p *Processor[T]) trimLocked() {
	if over := len(p.pending) - p.config.MaxPending; over > 0 {
		p.pending = p.pending[over:]
		p.stats.Dropped += int64(over)
	}
}
