// Package sdk wires category plugins into a configured Framework.
//
// A Framework is built once from an outputs document and a set of plugins,
// one per category. Every plugin is configured before Configure returns;
// if any plugin fails, no Framework is returned. Lookups on a built
// Framework are safe for concurrent use.
package sdk

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cloudkit/cloudkit/internal/analytics/pinpoint"
	"github.com/cloudkit/cloudkit/internal/health"
	"github.com/cloudkit/cloudkit/internal/logging"
	"github.com/cloudkit/cloudkit/internal/metrics"
	"github.com/cloudkit/cloudkit/internal/telemetry"
	"github.com/cloudkit/cloudkit/pkg/category"
	"github.com/cloudkit/cloudkit/pkg/errors"
	"github.com/cloudkit/cloudkit/pkg/outputs"
	"github.com/cloudkit/cloudkit/pkg/storage"
)

// Analytics is the capability resolved for the Analytics category.
type Analytics interface {
	category.Plugin
	RecordEvent(ctx context.Context, name string, properties map[string]string, values map[string]float64) (pinpoint.Event, error)
	FlushEvents(ctx context.Context) error
	ApplicationForegrounded(ctx context.Context) error
	ApplicationBackgrounded(ctx context.Context) error
}

// Storage is the capability resolved for the Storage category.
type Storage interface {
	category.Plugin
	UploadData(ctx context.Context, path string, data []byte) (storage.UploadResult, error)
	UploadFile(ctx context.Context, path, localPath string) (storage.UploadResult, error)
	UploadByKey(ctx context.Context, key string, data []byte) (storage.UploadResult, error)
	Remove(ctx context.Context, path string) (storage.RemoveResult, error)
	GetURL(ctx context.Context, path string) (storage.GetURLResult, error)
	List(ctx context.Context, prefix string, limit int) (storage.ListResult, error)
}

// starter is implemented by plugins with background work.
type starter interface {
	Start(ctx context.Context) error
	Stop()
}

// checker is implemented by plugins that can probe their backend.
type checker interface {
	HealthCheck(ctx context.Context) error
}

// Framework is a configured, immutable set of category plugins.
type Framework struct {
	registry  *category.Registry
	logger    *slog.Logger
	recorder  metrics.Recorder
	collector *metrics.Collector
	tracker   *health.Tracker
	tracing   *telemetry.Provider
}

type settings struct {
	plugins   []category.Plugin
	logger    *slog.Logger
	recorder  metrics.Recorder
	collector *metrics.Collector
	tracker   *health.Tracker
	tracing   *telemetry.Provider
}

// Option customises Configure.
type Option func(*settings)

// WithPlugins registers plugins. Each category may be registered once.
func WithPlugins(plugins ...category.Plugin) Option {
	return func(s *settings) { s.plugins = append(s.plugins, plugins...) }
}

// WithLogger sets the framework logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithRecorder sets the metrics recorder used for resolutions and configuration.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(s *settings) { s.recorder = recorder }
}

// WithCollector attaches a collector that is also used as the recorder.
// The framework stops it on Stop.
func WithCollector(collector *metrics.Collector) Option {
	return func(s *settings) {
		s.collector = collector
		s.recorder = collector
	}
}

// WithHealthTracker attaches a tracker. Plugins report operations to it
// through their own recorder; the framework registers every configured
// category and feeds it HealthCheck results.
func WithHealthTracker(tracker *health.Tracker) Option {
	return func(s *settings) { s.tracker = tracker }
}

// WithTracing attaches a tracer provider that is shut down on Stop.
func WithTracing(provider *telemetry.Provider) Option {
	return func(s *settings) { s.tracing = provider }
}

// Configure registers the plugins and configures each of them against out.
// The first registration or configuration failure is returned unchanged
// apart from a plugin detail.
func Configure(ctx context.Context, out *outputs.Outputs, opts ...Option) (*Framework, error) {
	s := &settings{recorder: metrics.Nop{}}
	for _, opt := range opts {
		opt(s)
	}
	logger := logging.OrDefault(s.logger).With("component", "framework")

	builder := category.NewRegistryBuilder()
	for _, p := range s.plugins {
		if err := builder.Add(p); err != nil {
			return nil, err
		}
	}
	registry := builder.Build()

	for _, p := range registry.Plugins() {
		start := time.Now()
		if err := p.Configure(ctx, out); err != nil {
			logger.Error("Plugin configuration failed",
				"category", p.Category().String(),
				"plugin", p.PluginKey(),
				"error", err)
			return nil, annotate(err, p)
		}
		logger.Debug("Plugin configured",
			"category", p.Category().String(),
			"plugin", p.PluginKey(),
			"duration", time.Since(start))
		if s.tracker != nil {
			s.tracker.Register(p.Category().String())
		}
	}

	logger.Info("Framework configured", "categories", len(registry.Categories()))

	return &Framework{
		registry:  registry,
		logger:    logger,
		recorder:  s.recorder,
		collector: s.collector,
		tracker:   s.tracker,
		tracing:   s.tracing,
	}, nil
}

func annotate(err error, p category.Plugin) error {
	if e, ok := errors.AsError(err); ok && e == err {
		return e.WithDetail("plugin", p.PluginKey())
	}
	return err
}

// Resolve returns the plugin registered for cat.
func (f *Framework) Resolve(cat category.Category) (category.Plugin, error) {
	p, err := f.registry.Resolve(cat)
	f.recorder.RecordResolution(cat.String(), err)
	return p, err
}

// Analytics returns the analytics plugin.
func (f *Framework) Analytics() (Analytics, error) {
	return resolveAs[Analytics](f, category.Analytics)
}

// Storage returns the storage plugin.
func (f *Framework) Storage() (Storage, error) {
	return resolveAs[Storage](f, category.Storage)
}

func resolveAs[T any](f *Framework, cat category.Category) (T, error) {
	p, err := category.ResolveAs[T](f.registry, cat)
	f.recorder.RecordResolution(cat.String(), err)
	return p, err
}

// Categories returns the configured categories.
func (f *Framework) Categories() []category.Category {
	return f.registry.Categories()
}

// HealthCheck probes every plugin that supports it concurrently and returns
// the first failure. Results are recorded in the health tracker when one is
// attached.
func (f *Framework) HealthCheck(ctx context.Context) error {
	var g errgroup.Group
	for _, p := range f.registry.Plugins() {
		c, ok := p.(checker)
		if !ok {
			continue
		}
		cat := p.Category().String()
		g.Go(func() error {
			err := c.HealthCheck(ctx)
			if f.tracker != nil {
				f.tracker.RecordCheck(cat, err)
			}
			return err
		})
	}
	return g.Wait()
}

// Health returns the tracked health of each category, or nil when no
// tracker is attached.
func (f *Framework) Health() []health.CategoryHealth {
	if f.tracker == nil {
		return nil
	}
	return f.tracker.Snapshot()
}

// Operations returns per-operation counts and latencies keyed by
// "category.operation", or nil when no metrics collector is attached.
func (f *Framework) Operations() map[string]metrics.OperationMetrics {
	if f.collector == nil {
		return nil
	}
	return f.collector.GetOperations()
}

// Start begins background work such as analytics auto flush and the
// metrics endpoint.
func (f *Framework) Start(ctx context.Context) error {
	if f.collector != nil {
		if err := f.collector.Start(f.logger); err != nil {
			return errors.Wrap(err, errors.CategoryCore, errors.ErrCodeOperationFailed,
				"failed to start metrics endpoint")
		}
	}
	for _, p := range f.registry.Plugins() {
		if s, ok := p.(starter); ok {
			if err := s.Start(ctx); err != nil {
				return err
			}
		}
	}
	f.logger.Info("Framework started")
	return nil
}

// Stop ends background work, flushes analytics and stops the metrics endpoint.
func (f *Framework) Stop(ctx context.Context) error {
	for _, p := range f.registry.Plugins() {
		if s, ok := p.(starter); ok {
			s.Stop()
		}
	}

	var firstErr error
	if a, err := category.ResolveAs[Analytics](f.registry, category.Analytics); err == nil {
		if err := a.FlushEvents(ctx); err != nil {
			f.logger.Warn("Final analytics flush failed", "error", err)
			firstErr = err
		}
	}
	if f.collector != nil {
		if err := f.collector.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if f.tracing != nil {
		if err := f.tracing.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	f.logger.Info("Framework stopped")
	return firstErr
}
