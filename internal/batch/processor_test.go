package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]int
	fail    error
}

func (r *recorder) deliver(_ context.Context, items []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.batches = append(r.batches, append([]int(nil), items...))
	return nil
}

func TestNewProcessor(t *testing.T) {
	_, err := NewProcessor[int](Config{}, nil)
	assert.Error(t, err)

	p, err := NewProcessor(Config{MaxBatchSize: 10, MaxPending: 2}, (&recorder{}).deliver)
	require.NoError(t, err)
	assert.Equal(t, 10, p.config.MaxBatchSize)
	assert.Equal(t, 10, p.config.MaxPending)

	p, err = NewProcessor(Config{}, (&recorder{}).deliver)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), p.config)
}

func TestProcessor_DeliversFullBatches(t *testing.T) {
	r := &recorder{}
	p, err := NewProcessor(Config{MaxBatchSize: 3, MaxPending: 10}, r.deliver)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		require.NoError(t, p.Record(ctx, i))
	}

	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}}, r.batches)
	assert.Equal(t, 1, p.Pending())

	require.NoError(t, p.Flush(ctx))
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, r.batches)

	stats := p.GetStats()
	assert.Equal(t, int64(7), stats.Recorded)
	assert.Equal(t, int64(7), stats.Delivered)
	assert.Equal(t, int64(3), stats.Batches)
	assert.Zero(t, stats.Pending)
}

func TestProcessor_FlushEmpty(t *testing.T) {
	r := &recorder{}
	p, err := NewProcessor(Config{}, r.deliver)
	require.NoError(t, err)

	require.NoError(t, p.Flush(context.Background()))
	assert.Empty(t, r.batches)
}

func TestProcessor_FailedBatchIsRequeued(t *testing.T) {
	boom := errors.New("unavailable")
	r := &recorder{fail: boom}
	var handled []error
	p, err := NewProcessor(Config{MaxBatchSize: 2, MaxPending: 4}, r.deliver,
		WithErrorHandler(func(err error) { handled = append(handled, err) }))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Record(ctx, 1))
	require.NoError(t, p.Record(ctx, 2))
	assert.Equal(t, 2, p.Pending())
	require.Len(t, handled, 1)
	assert.ErrorIs(t, handled[0], boom)

	assert.ErrorIs(t, p.Flush(ctx), boom)
	assert.Equal(t, 2, p.Pending())

	r.fail = nil
	require.NoError(t, p.Flush(ctx))
	assert.Equal(t, [][]int{{1, 2}}, r.batches)
	assert.Equal(t, int64(2), p.GetStats().Failures)
}

func TestProcessor_DropsOldestPastLimit(t *testing.T) {
	r := &recorder{fail: errors.New("down")}
	p, err := NewProcessor(Config{MaxBatchSize: 2, MaxPending: 3}, r.deliver)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, p.Record(ctx, i))
	}
	assert.Equal(t, 3, p.Pending())
	assert.Equal(t, int64(2), p.GetStats().Dropped)

	r.fail = nil
	require.NoError(t, p.Flush(ctx))
	assert.Equal(t, [][]int{{3, 4}, {5}}, r.batches)
}

func TestProcessor_CancelledContext(t *testing.T) {
	r := &recorder{}
	p, err := NewProcessor(Config{MaxBatchSize: 2}, r.deliver)
	require.NoError(t, err)

	require.NoError(t, p.Record(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Flush(ctx), context.Canceled)
	assert.Equal(t, 1, p.Pending())
}

func TestProcessor_RecordRejectsDoneContext(t *testing.T) {
	r := &recorder{}
	p, err := NewProcessor(Config{MaxBatchSize: 2}, r.deliver)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Record(ctx, 1), context.Canceled)
	assert.Zero(t, p.Pending())
	assert.Zero(t, p.GetStats().Recorded)
}
