package health

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkit/cloudkit/internal/logging"
	"github.com/cloudkit/cloudkit/internal/metrics"
	"github.com/cloudkit/cloudkit/pkg/errors"
)

var _ metrics.Recorder = (*Tracker)(nil)

func newTracker() *Tracker {
	return NewTracker(Config{ErrorThreshold: 2, UnavailableThreshold: 4}, logging.Discard())
}

func TestHealthState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateHealthy, "healthy"},
		{StateDegraded, "degraded"},
		{StateUnavailable, "unavailable"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}

func TestTracker_Transitions(t *testing.T) {
	tr := newTracker()
	tr.RecordConfiguration("storage", nil)
	failure := errors.Storage(errors.ErrCodeTransferFailed, "upload failed", "retry")

	assert.Equal(t, StateHealthy, tr.State("storage"))

	tr.RecordOperation("storage", "upload_data", time.Millisecond, failure)
	assert.Equal(t, StateHealthy, tr.State("storage"))

	tr.RecordOperation("storage", "upload_data", time.Millisecond, failure)
	assert.Equal(t, StateDegraded, tr.State("storage"))

	tr.RecordOperation("storage", "upload_data", time.Millisecond, failure)
	tr.RecordOperation("storage", "upload_data", time.Millisecond, failure)
	assert.Equal(t, StateUnavailable, tr.State("storage"))
	assert.Equal(t, StateUnavailable, tr.Overall())

	for i := 0; i < 4; i++ {
		tr.RecordOperation("storage", "upload_data", time.Millisecond, nil)
	}
	assert.Equal(t, StateHealthy, tr.State("storage"))
}

func TestTracker_IgnoresMissingObjects(t *testing.T) {
	tr := newTracker()
	tr.Register("storage")

	notFound := errors.Storage(errors.ErrCodeObjectNotFound, "missing", "check the path")
	for i := 0; i < 5; i++ {
		tr.RecordOperation("storage", "remove", 0, notFound)
	}
	assert.Equal(t, StateHealthy, tr.State("storage"))
}

func TestTracker_UnregisteredCategory(t *testing.T) {
	tr := newTracker()

	tr.RecordConfiguration("analytics", stderrors.New("bad config"))
	tr.RecordOperation("analytics", "flush", 0, stderrors.New("boom"))

	assert.Equal(t, StateUnavailable, tr.State("analytics"))
	assert.Empty(t, tr.Snapshot())
	assert.Equal(t, StateHealthy, tr.Overall())
}

func TestTracker_Snapshot(t *testing.T) {
	tr := newTracker()
	tr.Register("storage")
	tr.Register("analytics")
	tr.RecordCheck("storage", stderrors.New("head bucket failed"))

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "analytics", snap[0].Category)
	assert.Equal(t, "storage", snap[1].Category)
	assert.Equal(t, 1, snap[1].ConsecutiveErrors)
	assert.Equal(t, "head bucket failed", snap[1].LastError)

	snap[1].State = StateUnavailable
	assert.Equal(t, StateHealthy, tr.State("storage"), "snapshot must be a copy")
}

func TestNewTracker_FixesThresholds(t *testing.T) {
	tr := NewTracker(Config{}, nil)
	assert.Equal(t, DefaultConfig().ErrorThreshold, tr.config.ErrorThreshold)
	assert.Equal(t, tr.config.ErrorThreshold, tr.config.UnavailableThreshold)
}
