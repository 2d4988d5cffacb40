package s3

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudkit/cloudkit/internal/cache"
	"github.com/cloudkit/cloudkit/internal/logging"
	"github.com/cloudkit/cloudkit/internal/metrics"
	"github.com/cloudkit/cloudkit/internal/telemetry"
	"github.com/cloudkit/cloudkit/pkg/category"
	"github.com/cloudkit/cloudkit/pkg/errors"
	"github.com/cloudkit/cloudkit/pkg/outputs"
	"github.com/cloudkit/cloudkit/pkg/storage"
)

// PluginKey identifies this plugin in the Storage category.
const PluginKey = "awsS3StoragePlugin"

// TransportFactory creates the transport once the configuration is known.
type TransportFactory func(ctx context.Context, cfg PluginConfiguration, options Options, logger *slog.Logger) (Transport, error)

// Plugin is the S3 storage plugin.
type Plugin struct {
	options  Options
	factory  TransportFactory
	logger   *slog.Logger
	recorder metrics.Recorder
	tracer   trace.Tracer
	now      func() time.Time

	mu        sync.RWMutex
	config    *PluginConfiguration
	transport Transport
	urls      *cache.LRU[string, storage.GetURLResult]
}

// PluginOption customises a Plugin.
type PluginOption func(*Plugin)

// WithLogger sets the plugin logger.
func WithLogger(logger *slog.Logger) PluginOption {
	return func(p *Plugin) { p.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) PluginOption {
	return func(p *Plugin) { p.recorder = recorder }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) PluginOption {
	return func(p *Plugin) { p.tracer = tracer }
}

// WithTransport uses a fixed transport instead of creating an S3 client.
func WithTransport(t Transport) PluginOption {
	return func(p *Plugin) {
		p.factory = func(context.Context, PluginConfiguration, Options, *slog.Logger) (Transport, error) {
			return t, nil
		}
	}
}

// WithClock overrides the clock used for URL expiry times.
func WithClock(now func() time.Time) PluginOption {
	return func(p *Plugin) { p.now = now }
}

// New creates an unconfigured plugin.
func New(options Options, opts ...PluginOption) *Plugin {
	p := &Plugin{
		options:  options,
		factory:  defaultFactory,
		recorder: metrics.Nop{},
		tracer:   telemetry.DefaultTracer(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDefault(p.logger).With("component", "storage", "plugin", PluginKey)
	return p
}

func defaultFactory(ctx context.Context, cfg PluginConfiguration, options Options, logger *slog.Logger) (Transport, error) {
	return NewS3Transport(ctx, cfg, options, logger)
}

// Category implements category.Plugin.
func (p *Plugin) Category() category.Category {
	return category.Storage
}

// PluginKey implements category.Plugin.
func (p *Plugin) PluginKey() string {
	return PluginKey
}

// Configure derives the configuration and creates the transport.
func (p *Plugin) Configure(ctx context.Context, out *outputs.Outputs) error {
	err := p.configure(ctx, out)
	p.recorder.RecordConfiguration(category.Storage.String(), err)
	return err
}

func (p *Plugin) configure(ctx context.Context, out *outputs.Outputs) error {
	cfg, err := From(out, p.options)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	transport, err := p.factory(ctx, cfg, p.options, p.logger)
	if err != nil {
		return err
	}

	var urls *cache.LRU[string, storage.GetURLResult]
	if p.options.URLCacheSize > 0 {
		urls = cache.New[string, storage.GetURLResult](cache.Config{
			MaxEntries: p.options.URLCacheSize,
			TTL:        cfg.URLExpiration() / 2,
		})
	}

	p.mu.Lock()
	p.config = &cfg
	p.transport = transport
	p.urls = urls
	p.mu.Unlock()

	p.logger.Info("Storage plugin configured",
		"bucket", cfg.Bucket(),
		"region", cfg.Region(),
		"access_level", cfg.DefaultAccessLevel(),
		"transfer_optimization", p.options.TransferOptimization)
	return nil
}

// Configuration returns the configuration, or false before Configure succeeds.
func (p *Plugin) Configuration() (PluginConfiguration, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.config == nil {
		return PluginConfiguration{}, false
	}
	return *p.config, true
}

// UploadData stores data at the full object path.
func (p *Plugin) UploadData(ctx context.Context, path string, data []byte) (storage.UploadResult, error) {
	var result storage.UploadResult
	err := p.observe(ctx, "upload_data", func(ctx context.Context, cfg PluginConfiguration, t Transport) error {
		if err := validatePath(path, "UploadData"); err != nil {
			return err
		}
		if err := t.PutObject(ctx, path, data, detectContentType(path)); err != nil {
			return err
		}
		result = storage.NewUploadResult(path, path)
		return nil
	})
	return result, err
}

// UploadFile reads a local file and stores it at the full object path.
func (p *Plugin) UploadFile(ctx context.Context, path, localPath string) (storage.UploadResult, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return storage.UploadResult{}, errors.Wrap(err, errors.CategoryStorage, errors.ErrCodeOperationFailed,
			"failed to read local file").
			WithOperation("UploadFile").
			WithDetail("local_path", localPath).
			WithSuggestion("Check that the file exists and is readable.")
	}
	return p.UploadData(ctx, path, data)
}

// UploadByKey stores data under the default access level. The result's
// path carries the access prefix; its legacy key does not.
func (p *Plugin) UploadByKey(ctx context.Context, key string, data []byte) (storage.UploadResult, error) {
	var result storage.UploadResult
	err := p.observe(ctx, "upload_by_key", func(ctx context.Context, cfg PluginConfiguration, t Transport) error {
		if err := validatePath(key, "UploadByKey"); err != nil {
			return err
		}
		path := cfg.AccessPrefix() + key
		if err := t.PutObject(ctx, path, data, detectContentType(key)); err != nil {
			return err
		}
		result = storage.NewUploadResult(path, key)
		return nil
	})
	return result, err
}

// Remove deletes the object at path.
func (p *Plugin) Remove(ctx context.Context, path string) (storage.RemoveResult, error) {
	var result storage.RemoveResult
	err := p.observe(ctx, "remove", func(ctx context.Context, cfg PluginConfiguration, t Transport) error {
		if err := validatePath(path, "Remove"); err != nil {
			return err
		}
		if err := t.DeleteObject(ctx, path); err != nil {
			return err
		}
		if urls := p.urlCache(); urls != nil {
			urls.Delete(path)
		}
		result = storage.NewRemoveResult(path, path)
		return nil
	})
	return result, err
}

// GetURL returns a presigned download URL for path.
func (p *Plugin) GetURL(ctx context.Context, path string) (storage.GetURLResult, error) {
	var result storage.GetURLResult
	err := p.observe(ctx, "get_url", func(ctx context.Context, cfg PluginConfiguration, t Transport) error {
		if err := validatePath(path, "GetURL"); err != nil {
			return err
		}
		expires := cfg.URLExpiration()
		urls := p.urlCache()
		if urls != nil {
			if cached, ok := urls.Get(path); ok && cached.Expires().Sub(p.now()) > expires/2 {
				result = cached
				return nil
			}
		}

		url, err := t.PresignGetObject(ctx, path, expires)
		if err != nil {
			return err
		}
		result = storage.NewGetURLResult(url, p.now().Add(expires))
		if urls != nil {
			urls.Put(path, result, time.Time{})
		}
		return nil
	})
	return result, err
}

// List returns up to limit objects under prefix. A limit of 0 follows
// continuation tokens until the listing is exhausted.
func (p *Plugin) List(ctx context.Context, prefix string, limit int) (storage.ListResult, error) {
	var result storage.ListResult
	err := p.observe(ctx, "list", func(ctx context.Context, cfg PluginConfiguration, t Transport) error {
		if limit < 0 {
			return errors.Storage(errors.ErrCodeOperationFailed,
				"List limit cannot be negative",
				"Pass 0 to list every object or a positive page size.").WithOperation("List")
		}

		var (
			items []storage.Item
			token string
		)
		for {
			page, err := t.ListObjects(ctx, prefix, limit, token)
			if err != nil {
				return err
			}
			for _, obj := range page.Objects {
				items = append(items, storage.NewItem(obj.Key, legacyKey(cfg, obj.Key), obj.Size, obj.LastModified, obj.ETag))
			}
			token = page.NextToken
			if limit > 0 || token == "" {
				break
			}
		}

		result = storage.NewListResult(items, token)
		return nil
	})
	return result, err
}

// HealthCheck verifies the bucket is reachable when the transport supports it.
func (p *Plugin) HealthCheck(ctx context.Context) error {
	return p.observe(ctx, "health_check", func(ctx context.Context, _ PluginConfiguration, t Transport) error {
		if checker, ok := t.(interface{ HealthCheck(context.Context) error }); ok {
			return checker.HealthCheck(ctx)
		}
		return nil
	})
}

func (p *Plugin) observe(ctx context.Context, operation string, fn func(context.Context, PluginConfiguration, Transport) error) error {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "storage."+operation, trace.WithAttributes(
		telemetry.CategoryKey.String(category.Storage.String()),
		telemetry.PluginKey.String(PluginKey),
		telemetry.OperationKey.String(operation),
	))
	defer span.End()

	p.mu.RLock()
	cfg, transport := p.config, p.transport
	p.mu.RUnlock()

	var err error
	if cfg == nil {
		err = errors.Storage(errors.ErrCodeNotConfigured,
			"Storage plugin is not configured",
			"Configure the framework before calling storage operations.").WithOperation(operation)
	} else {
		span.SetAttributes(attribute.String("aws.s3.bucket", cfg.Bucket()))
		err = fn(ctx, *cfg, transport)
	}

	telemetry.RecordError(span, err)
	p.recorder.RecordOperation(category.Storage.String(), operation, time.Since(start), err)
	if err != nil {
		p.logger.Debug("Storage operation failed", "operation", operation, "error", err)
	}
	return err
}

func (p *Plugin) urlCache() *cache.LRU[string, storage.GetURLResult] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.urls
}

func validatePath(path, operation string) error {
	if path == "" {
		return errors.Storage(errors.ErrCodeOperationFailed,
			"Object path cannot be empty",
			"Provide the full object path or key.").WithOperation(operation)
	}
	return nil
}

// legacyKey strips the access prefix from a listed path.
func legacyKey(cfg PluginConfiguration, path string) string {
	return strings.TrimPrefix(path, cfg.AccessPrefix())
}
