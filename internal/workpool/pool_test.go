package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	items := make([]int, 20)
	outs := Run(context.Background(), 3, items, func(_ context.Context, _ int) Outcome {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return Outcome{}
	})
	require.Len(t, outs, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestEach_FailureDoesNotStopSiblings(t *testing.T) {
	r := NewReport()
	boom := errors.New("boom")
	Each(context.Background(), r, "devices", 2, []string{"a", "b", "c"},
		func(s string) string { return s },
		func(_ context.Context, s string) error {
			if s == "b" {
				return boom
			}
			return nil
		})

	assert.Equal(t, 2, r.Succeeded())
	assert.Equal(t, 1, r.Failed())
	assert.Equal(t, map[string]Counts{"devices": {Succeeded: 2, Failed: 1}}, r.ByCategory())
	require.Error(t, r.Err())
	assert.ErrorIs(t, r.Err(), boom)
	assert.Contains(t, r.Err().Error(), "devices/b")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	outs := Run(ctx, 4, []int{1, 2}, func(context.Context, int) Outcome {
		called = true
		return Outcome{}
	})
	assert.False(t, called)
	for _, o := range outs {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}

func TestReport_EmptyHasNoError(t *testing.T) {
	r := NewReport()
	assert.NoError(t, r.Err())
	assert.Zero(t, r.Failed())
}
