package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloudkit/cloudkit/internal/analytics/pinpoint"
	"github.com/cloudkit/cloudkit/internal/batch"
	"github.com/cloudkit/cloudkit/internal/logging"
	"github.com/cloudkit/cloudkit/pkg/errors"
)

// ArchiveSink is an analytics event sink that writes batches of events as
// JSON lines to the storage category. Record fails only when an event could
// not be queued; batches that fail to upload stay queued and are logged.
type ArchiveSink struct {
	*batch.Processor[pinpoint.Event]

	prefix  string
	storage func() (Storage, error)
	logger  *slog.Logger
	now     func() time.Time
}

// ArchiveOption customises NewArchiveSink.
type ArchiveOption func(*ArchiveSink)

// ArchiveLogger sets the logger used for failed uploads.
func ArchiveLogger(logger *slog.Logger) ArchiveOption {
	return func(s *ArchiveSink) {
		s.logger = logger
	}
}

// NewArchiveSink creates a sink writing under prefix. storage is called on
// every delivery so the storage plugin may be configured after the sink is
// created.
func NewArchiveSink(prefix string, cfg batch.Config, storage func() (Storage, error), opts ...ArchiveOption) (*ArchiveSink, error) {
	if storage == nil {
		return nil, errors.Analytics(errors.ErrCodeInvalidConfig,
			"No storage provided for the analytics archive",
			"Pass a storage resolver when creating the archive sink.")
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	s := &ArchiveSink{
		prefix:  prefix,
		storage: storage,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger).With("component", "analytics-archive")

	p, err := batch.NewProcessor(cfg, s.deliver, batch.WithErrorHandler(s.deliveryFailed))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAnalytics, errors.ErrCodeInvalidConfig,
			"failed to create analytics archive")
	}
	s.Processor = p
	return s, nil
}

func (s *ArchiveSink) deliver(ctx context.Context, events []pinpoint.Event) error {
	store, err := s.storage()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return errors.Wrap(err, errors.CategoryAnalytics, errors.ErrCodeOperationFailed,
				"failed to encode analytics event").WithDetail("event", e.Name)
		}
	}

	_, err = store.UploadData(ctx, s.objectPath(), buf.Bytes())
	return err
}

func (s *ArchiveSink) deliveryFailed(err error) {
	s.logger.Warn("Analytics archive upload failed, events kept for next flush",
		"pending", s.Pending(),
		"error", err)
}

func (s *ArchiveSink) objectPath() string {
	return s.prefix + s.now().UTC().Format("2006/01/02/150405") + "-" + uuid.NewString() + ".jsonl"
}
