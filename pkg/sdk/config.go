package sdk

import (
	"context"
	"sync/atomic"

	"github.com/cloudkit/cloudkit/internal/analytics/pinpoint"
	"github.com/cloudkit/cloudkit/internal/config"
	"github.com/cloudkit/cloudkit/internal/health"
	"github.com/cloudkit/cloudkit/internal/logging"
	"github.com/cloudkit/cloudkit/internal/metrics"
	"github.com/cloudkit/cloudkit/internal/storage/s3"
	"github.com/cloudkit/cloudkit/internal/telemetry"
	"github.com/cloudkit/cloudkit/pkg/errors"
	"github.com/cloudkit/cloudkit/pkg/outputs"
)

var newTracingProvider = telemetry.NewProvider

// Dependencies supplies what FromConfig cannot derive from configuration.
type Dependencies struct {
	// EventSink receives analytics events. When nil and storage is enabled,
	// events are archived to storage under Analytics.ArchivePrefix.
	EventSink pinpoint.EventSink

	AnalyticsOptions []pinpoint.PluginOption
	StorageOptions   []s3.PluginOption

	// Options are applied after the ones FromConfig derives.
	Options []Option
}

// FromConfig validates cfg, builds the logger, metrics collector, tracer
// provider and health tracker, loads the outputs file and configures the
// enabled plugins.
func FromConfig(ctx context.Context, cfg *config.Configuration, deps Dependencies) (_ *Framework, err error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Global.LogLevel,
		Format: cfg.Global.LogFormat,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryCore, errors.ErrCodeInvalidConfig,
			"failed to create logger")
	}

	collector, err := metrics.NewCollector(cfg.MetricsConfig())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryCore, errors.ErrCodeInvalidConfig,
			"failed to create metrics collector")
	}

	tracing, err := newTracingProvider(cfg.TracingConfig())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryCore, errors.ErrCodeInvalidConfig,
			"failed to create tracer provider")
	}
	defer func() {
		if err != nil {
			if shutdownErr := tracing.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
				logger.Warn("Tracer provider shutdown failed", "error", shutdownErr)
			}
		}
	}()
	tracer := tracing.Tracer()

	out, err := outputs.Load(cfg.Global.OutputsFile)
	if err != nil {
		return nil, err
	}

	tracker := health.NewTracker(health.DefaultConfig(), logger)
	healthHandler := tracker.Handler()
	collector.Handle("/health", healthHandler)
	collector.Handle("/health/", healthHandler)
	recorder := metrics.Multi{collector, tracker}

	opts := []Option{
		WithLogger(logger),
		WithCollector(collector),
		WithHealthTracker(tracker),
		WithTracing(tracing),
	}

	var built atomic.Pointer[Framework]

	if cfg.Analytics.Enabled {
		sink := deps.EventSink
		if sink == nil && cfg.Storage.Enabled {
			archive, err := NewArchiveSink(cfg.Analytics.ArchivePrefix, cfg.BatchConfig(), func() (Storage, error) {
				fw := built.Load()
				if fw == nil {
					return nil, errors.NoSuchProvider("analytics archive used before the framework was configured")
				}
				return fw.Storage()
			}, ArchiveLogger(logger))
			if err != nil {
				return nil, err
			}
			sink = archive
		}
		pluginOpts := append([]pinpoint.PluginOption{
			pinpoint.WithLogger(logger),
			pinpoint.WithRecorder(recorder),
			pinpoint.WithTracer(tracer),
		}, deps.AnalyticsOptions...)
		opts = append(opts, WithPlugins(pinpoint.New(cfg.AnalyticsOptions(), sink, pluginOpts...)))
	}

	if cfg.Storage.Enabled {
		pluginOpts := append([]s3.PluginOption{
			s3.WithLogger(logger),
			s3.WithRecorder(recorder),
			s3.WithTracer(tracer),
		}, deps.StorageOptions...)
		opts = append(opts, WithPlugins(s3.New(cfg.StorageOptions(), pluginOpts...)))
	}

	fw, err := Configure(ctx, out, append(opts, deps.Options...)...)
	if err != nil {
		return nil, err
	}
	built.Store(fw)
	return fw, nil
}
