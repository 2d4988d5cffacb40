package pinpoint

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudkit/cloudkit/internal/logging"
	"github.com/cloudkit/cloudkit/internal/metrics"
	"github.com/cloudkit/cloudkit/internal/telemetry"
	"github.com/cloudkit/cloudkit/pkg/category"
	"github.com/cloudkit/cloudkit/pkg/errors"
	"github.com/cloudkit/cloudkit/pkg/outputs"
)

// PluginKey identifies this plugin in the Analytics category.
const PluginKey = "awsPinpointAnalyticsPlugin"

// Session event names recorded when lifecycle tracking is on.
const (
	SessionStartEvent = "_session.start"
	SessionStopEvent  = "_session.stop"
)

// Event is one analytics event handed to the sink.
type Event struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	SessionID  string             `json:"session_id"`
	Timestamp  time.Time          `json:"timestamp"`
	Properties map[string]string  `json:"properties,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// EventSink receives recorded events. Delivery, batching and wire format
// belong to the sink.
type EventSink interface {
	Record(ctx context.Context, event Event) error
	Flush(ctx context.Context) error
}

// Plugin is the Pinpoint analytics plugin.
type Plugin struct {
	options  Options
	sink     EventSink
	logger   *slog.Logger
	recorder metrics.Recorder
	tracer   trace.Tracer
	now      func() time.Time

	mu        sync.RWMutex
	config    *PluginConfiguration
	sessionID string
	disabled  bool

	stop    context.CancelFunc
	stopped chan struct{}
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

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) PluginOption {
	return func(p *Plugin) { p.now = now }
}

// New creates an unconfigured plugin.
func New(options Options, sink EventSink, opts ...PluginOption) *Plugin {
	p := &Plugin{
		options:  options,
		sink:     sink,
		recorder: metrics.Nop{},
		tracer:   telemetry.DefaultTracer(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDefault(p.logger).With("component", "analytics", "plugin", PluginKey)
	return p
}

// Category implements category.Plugin.
func (p *Plugin) Category() category.Category {
	return category.Analytics
}

// PluginKey implements category.Plugin.
func (p *Plugin) PluginKey() string {
	return PluginKey
}

// Configure derives and validates the plugin configuration.
func (p *Plugin) Configure(_ context.Context, out *outputs.Outputs) error {
	cfg, err := From(out, p.options)
	if err == nil {
		err = cfg.Validate()
	}
	p.recorder.RecordConfiguration(category.Analytics.String(), err)
	if err != nil {
		return err
	}
	if p.sink == nil {
		return errors.Analytics(errors.ErrCodeInvalidConfig,
			"No event sink configured for the analytics plugin",
			"Pass an EventSink when constructing the analytics plugin.")
	}

	p.mu.Lock()
	p.config = &cfg
	p.sessionID = uuid.NewString()
	p.mu.Unlock()

	p.logger.Info("Analytics plugin configured",
		"app_id", cfg.AppID(),
		"region", cfg.Region(),
		"auto_flush_interval", cfg.AutoFlushEventsInterval(),
		"track_lifecycle", cfg.TrackAppLifecycleEvents())

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

// Enable resumes event recording.
func (p *Plugin) Enable() {
	p.mu.Lock()
	p.disabled = false
	p.mu.Unlock()
}

// Disable drops events until Enable is called.
func (p *Plugin) Disable() {
	p.mu.Lock()
	p.disabled = true
	p.mu.Unlock()
}

// RecordEvent stamps the event with an id, session and timestamp and hands
// it to the sink. Events are dropped while the plugin is disabled.
func (p *Plugin) RecordEvent(ctx context.Context, name string, properties map[string]string, values map[string]float64) (Event, error) {
	start := time.Now()
	ctx, span := p.startSpan(ctx, "record_event")
	defer span.End()
	span.SetAttributes(attribute.String("analytics.event", name))

	event, err := p.recordEvent(ctx, name, properties, values)
	telemetry.RecordError(span, err)
	p.recorder.RecordOperation(category.Analytics.String(), "record_event", time.Since(start), err)
	return event, err
}

func (p *Plugin) recordEvent(ctx context.Context, name string, properties map[string]string, values map[string]float64) (Event, error) {
	p.mu.RLock()
	configured := p.config != nil
	disabled := p.disabled
	sessionID := p.sessionID
	p.mu.RUnlock()

	if !configured {
		return Event{}, notConfigured("RecordEvent")
	}
	if name == "" {
		return Event{}, errors.Analytics(errors.ErrCodeOperationFailed,
			"Event name cannot be empty",
			"Provide a name when recording an analytics event.").WithOperation("RecordEvent")
	}

	event := Event{
		ID:         uuid.NewString(),
		Name:       name,
		SessionID:  sessionID,
		Timestamp:  p.now(),
		Properties: copyStrings(properties),
		Metrics:    copyFloats(values),
	}

	if disabled {
		p.logger.Debug("Analytics disabled, dropping event", "event", name)
		return event, nil
	}

	if err := p.sink.Record(ctx, event); err != nil {
		return Event{}, errors.Wrap(err, errors.CategoryAnalytics, errors.ErrCodeOperationFailed,
			"failed to record analytics event").
			WithOperation("RecordEvent").
			WithDetail("event", name)
	}
	return event, nil
}

// FlushEvents asks the sink to deliver recorded events.
func (p *Plugin) FlushEvents(ctx context.Context) error {
	start := time.Now()
	ctx, span := p.startSpan(ctx, "flush")
	defer span.End()

	err := p.flush(ctx)
	telemetry.RecordError(span, err)
	p.recorder.RecordOperation(category.Analytics.String(), "flush", time.Since(start), err)
	return err
}

func (p *Plugin) flush(ctx context.Context) error {
	if _, ok := p.Configuration(); !ok {
		return notConfigured("FlushEvents")
	}
	if err := p.sink.Flush(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryAnalytics, errors.ErrCodeOperationFailed,
			"failed to flush analytics events").WithOperation("FlushEvents")
	}
	return nil
}

// ApplicationForegrounded starts a new session and, when lifecycle tracking
// is on, records a session start event.
func (p *Plugin) ApplicationForegrounded(ctx context.Context) error {
	cfg, ok := p.Configuration()
	if !ok {
		return notConfigured("ApplicationForegrounded")
	}

	p.mu.Lock()
	p.sessionID = uuid.NewString()
	p.mu.Unlock()

	if !cfg.TrackAppLifecycleEvents() {
		return nil
	}
	_, err := p.RecordEvent(ctx, SessionStartEvent, nil, nil)
	return err
}

// ApplicationBackgrounded records a session stop event when lifecycle
// tracking is on and flushes.
func (p *Plugin) ApplicationBackgrounded(ctx context.Context) error {
	cfg, ok := p.Configuration()
	if !ok {
		return notConfigured("ApplicationBackgrounded")
	}
	if !cfg.TrackAppLifecycleEvents() {
		return nil
	}
	if _, err := p.RecordEvent(ctx, SessionStopEvent, nil, nil); err != nil {
		return err
	}
	return p.FlushEvents(ctx)
}

// Start flushes events every AutoFlushEventsInterval until ctx is done or
// Stop is called.
func (p *Plugin) Start(ctx context.Context) error {
	cfg, ok := p.Configuration()
	if !ok {
		return notConfigured("Start")
	}

	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.stop = cancel
	p.stopped = make(chan struct{})
	stopped := p.stopped
	p.mu.Unlock()

	go p.flushLoop(loopCtx, cfg.AutoFlushEventsInterval(), stopped)
	return nil
}

// Stop ends the auto-flush loop and waits for it to exit.
func (p *Plugin) Stop() {
	p.mu.Lock()
	cancel, stopped := p.stop, p.stopped
	p.stop, p.stopped = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (p *Plugin) flushLoop(ctx context.Context, interval time.Duration, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.FlushEvents(ctx); err != nil {
				p.logger.Warn("Auto flush failed", "error", err)
			}
		}
	}
}

func (p *Plugin) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "analytics."+operation, trace.WithAttributes(
		telemetry.CategoryKey.String(category.Analytics.String()),
		telemetry.PluginKey.String(PluginKey),
		telemetry.OperationKey.String(operation),
	))
}

func notConfigured(operation string) error {
	return errors.Analytics(errors.ErrCodeNotConfigured,
		"Analytics plugin is not configured",
		"Configure the framework before recording analytics events.").WithOperation(operation)
}

func copyStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyFloats(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
