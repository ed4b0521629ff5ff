package syncwait

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapObserver observes names present in its set.
type mapObserver struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (o *mapObserver) Observed(_ context.Context, name string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.seen[name], nil
}

func (o *mapObserver) mark(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.seen[name] = true
}

func TestWait_AllObservedImmediately(t *testing.T) {
	obs := &mapObserver{seen: map[string]bool{"a.txt": true, "b.txt": true}}
	w := New(obs, time.Minute, nil)
	w.Interval = time.Millisecond

	report, err := w.Wait(context.Background(), []string{"a.txt", "b.txt"}, 0)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Empty(t, report.Missing)
}

func TestWait_ObservedAfterDelay(t *testing.T) {
	obs := &mapObserver{seen: map[string]bool{}}
	w := New(obs, time.Minute, nil)
	w.Interval = time.Millisecond

	go func() {
		time.Sleep(20 * time.Millisecond)
		obs.mark("late.txt")
	}()

	report, err := w.Wait(context.Background(), []string{"late.txt"}, 0)
	require.NoError(t, err)
	assert.True(t, report.Success)
}

func TestWait_TimeoutReportsMissing(t *testing.T) {
	obs := &mapObserver{seen: map[string]bool{"found.txt": true}}
	w := New(obs, 30*time.Millisecond, nil)
	w.Interval = 5 * time.Millisecond

	report, err := w.Wait(context.Background(), []string{"found.txt", "lost.txt"}, 0)
	require.ErrorIs(t, err, ErrTimeout)
	assert.False(t, report.Success)
	assert.Equal(t, []string{"lost.txt"}, report.Missing)
}

func TestWait_HintSkipsPolling(t *testing.T) {
	// The observer never reports the name; only the hint clears it.
	obs := &mapObserver{seen: map[string]bool{}}
	w := New(obs, time.Minute, nil)
	w.Interval = time.Millisecond

	hints := make(chan string, 1)
	hints <- "hinted.txt"
	w.Hints = hints

	report, err := w.Wait(context.Background(), []string{"hinted.txt"}, 0)
	require.NoError(t, err)
	assert.True(t, report.Success)
}

func TestWait_ContextCancellation(t *testing.T) {
	obs := &mapObserver{seen: map[string]bool{}}
	w := New(obs, time.Minute, nil)
	w.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := w.Wait(ctx, []string{"never.txt"}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBudget_ScalesWithSizeAndIsBounded(t *testing.T) {
	w := New(nil, time.Minute, nil)

	// Baseline: one file, no size.
	assert.Equal(t, time.Minute, w.Budget(1, 0))

	// Two files double the baseline.
	assert.Equal(t, 2*time.Minute, w.Budget(2, 0))

	// Size adds time at the assumed agent throughput.
	assert.Equal(t, time.Minute+10*time.Second, w.Budget(1, 100<<20))

	// Bounded at the cap no matter the size.
	assert.Equal(t, 10*time.Minute, w.Budget(1, 1<<40))
}
