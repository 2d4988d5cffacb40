package pinpoint

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkit/cloudkit/internal/logging"
	"github.com/cloudkit/cloudkit/pkg/category"
	"github.com/cloudkit/cloudkit/pkg/errors"
)

type fakeSink struct {
	mu        sync.Mutex
	events    []Event
	flushes   int
	recordErr error
	flushErr  error
	flushed   chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{flushed: make(chan struct{}, 16)}
}

func (s *fakeSink) Record(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *fakeSink) Flush(context.Context) error {
	s.mu.Lock()
	s.flushes++
	err := s.flushErr
	s.mu.Unlock()

	select {
	case s.flushed <- struct{}{}:
	default:
	}
	return err
}

func (s *fakeSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.Name)
	}
	return names
}

func configuredPlugin(t *testing.T, options Options, sink EventSink) *Plugin {
	t.Helper()
	p := New(options, sink, WithLogger(logging.Discard()))
	require.NoError(t, p.Configure(context.Background(), pinpointOutputs("app", "us-east-1")))
	return p
}

func TestPlugin_Identity(t *testing.T) {
	p := New(DefaultOptions(), newFakeSink())

	assert.Equal(t, category.Analytics, p.Category())
	assert.Equal(t, "awsPinpointAnalyticsPlugin", p.PluginKey())

	var _ category.Plugin = p
}

func TestPlugin_Configure(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p := configuredPlugin(t, DefaultOptions(), newFakeSink())

		cfg, ok := p.Configuration()
		require.True(t, ok)
		assert.Equal(t, "app", cfg.AppID())
		assert.Equal(t, DefaultAutoFlushEventsInterval, cfg.AutoFlushEventsInterval())
	})

	t.Run("missing analytics section", func(t *testing.T) {
		p := New(DefaultOptions(), newFakeSink())
		err := p.Configure(context.Background(), nil)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeMissingConfig, errors.CodeOf(err))

		_, ok := p.Configuration()
		assert.False(t, ok)
	})

	t.Run("invalid identity", func(t *testing.T) {
		p := New(DefaultOptions(), newFakeSink())
		err := p.Configure(context.Background(), pinpointOutputs("", "us-east-1"))
		assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))
	})

	t.Run("no sink", func(t *testing.T) {
		p := New(DefaultOptions(), nil)
		err := p.Configure(context.Background(), pinpointOutputs("app", "us-east-1"))
		assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))
	})
}

func TestPlugin_RecordEvent(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sink := newFakeSink()
	p := New(DefaultOptions(), sink, WithLogger(logging.Discard()), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := p.RecordEvent(ctx, "click", nil, nil)
	assert.Equal(t, errors.ErrCodeNotConfigured, errors.CodeOf(err))

	require.NoError(t, p.Configure(ctx, pinpointOutputs("app", "us-east-1")))

	props := map[string]string{"screen": "home"}
	event, err := p.RecordEvent(ctx, "click", props, map[string]float64{"count": 1})
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.NotEmpty(t, event.SessionID)
	assert.Equal(t, now, event.Timestamp)
	assert.Equal(t, "home", event.Properties["screen"])

	props["screen"] = "changed"
	assert.Equal(t, "home", event.Properties["screen"], "properties must be copied")

	second, err := p.RecordEvent(ctx, "click", nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, event.ID, second.ID)
	assert.Equal(t, event.SessionID, second.SessionID)

	_, err = p.RecordEvent(ctx, "", nil, nil)
	assert.Error(t, err)

	assert.Equal(t, []string{"click", "click"}, sink.names())
}

func TestPlugin_RecordEventSinkFailure(t *testing.T) {
	sink := newFakeSink()
	sink.recordErr = stderrors.New("queue full")
	p := configuredPlugin(t, DefaultOptions(), sink)

	_, err := p.RecordEvent(context.Background(), "click", nil, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeOperationFailed, errors.CodeOf(err))
	assert.ErrorIs(t, err, sink.recordErr)
}

func TestPlugin_EnableDisable(t *testing.T) {
	sink := newFakeSink()
	p := configuredPlugin(t, DefaultOptions(), sink)
	ctx := context.Background()

	p.Disable()
	_, err := p.RecordEvent(ctx, "dropped", nil, nil)
	require.NoError(t, err)

	p.Enable()
	_, err = p.RecordEvent(ctx, "kept", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"kept"}, sink.names())
}

func TestPlugin_FlushEvents(t *testing.T) {
	sink := newFakeSink()
	p := New(DefaultOptions(), sink, WithLogger(logging.Discard()))
	ctx := context.Background()

	assert.Equal(t, errors.ErrCodeNotConfigured, errors.CodeOf(p.FlushEvents(ctx)))

	require.NoError(t, p.Configure(ctx, pinpointOutputs("app", "us-east-1")))
	require.NoError(t, p.FlushEvents(ctx))
	assert.Equal(t, 1, sink.flushes)

	sink.flushErr = stderrors.New("network down")
	err := p.FlushEvents(ctx)
	assert.Equal(t, errors.ErrCodeOperationFailed, errors.CodeOf(err))
	assert.ErrorIs(t, err, sink.flushErr)
}

func TestPlugin_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("tracking on", func(t *testing.T) {
		sink := newFakeSink()
		p := configuredPlugin(t, DefaultOptions(), sink)

		before, err := p.RecordEvent(ctx, "before", nil, nil)
		require.NoError(t, err)

		require.NoError(t, p.ApplicationForegrounded(ctx))
		after, err := p.RecordEvent(ctx, "after", nil, nil)
		require.NoError(t, err)
		require.NoError(t, p.ApplicationBackgrounded(ctx))

		assert.Equal(t, []string{"before", SessionStartEvent, "after", SessionStopEvent}, sink.names())
		assert.NotEqual(t, before.SessionID, after.SessionID, "foregrounding starts a new session")
		assert.Equal(t, 1, sink.flushes)
	})

	t.Run("tracking off", func(t *testing.T) {
		sink := newFakeSink()
		p := configuredPlugin(t, Options{AutoFlushEventsInterval: time.Second}, sink)

		require.NoError(t, p.ApplicationForegrounded(ctx))
		require.NoError(t, p.ApplicationBackgrounded(ctx))

		assert.Empty(t, sink.names())
		assert.Equal(t, 0, sink.flushes)
	})

	t.Run("not configured", func(t *testing.T) {
		p := New(DefaultOptions(), newFakeSink())
		assert.Equal(t, errors.ErrCodeNotConfigured, errors.CodeOf(p.ApplicationForegrounded(ctx)))
		assert.Equal(t, errors.ErrCodeNotConfigured, errors.CodeOf(p.ApplicationBackgrounded(ctx)))
	})
}

func TestPlugin_AutoFlush(t *testing.T) {
	sink := newFakeSink()
	p := configuredPlugin(t, Options{AutoFlushEventsInterval: 10 * time.Millisecond, TrackLifecycleEvents: true}, sink)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()), "second Start is a no-op")

	select {
	case <-sink.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("auto flush did not run")
	}

	p.Stop()
	p.Stop()
}

func TestPlugin_StartRequiresConfiguration(t *testing.T) {
	p := New(DefaultOptions(), newFakeSink())
	err := p.Start(context.Background())
	assert.Equal(t, errors.ErrCodeNotConfigured, errors.CodeOf(err))
}
