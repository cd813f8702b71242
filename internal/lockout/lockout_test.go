package lockout

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestTracker создаёт трекер с управляемыми часами.
func newTestTracker(cfg Config, start time.Time) (*Tracker, *time.Time) {
	clock := start
	tr := New(cfg)
	tr.now = func() time.Time { return clock }

	return tr, &clock
}

func TestLocked_ThresholdReachedExactly(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr, _ := newTestTracker(Config{MaxFailedAttempts: 5, Window: 15 * time.Minute}, start)

	for i := 0; i < 4; i++ {
		tr.Fail("alice")
	}
	require.False(t, tr.Locked("alice"), "4 неудачи из 5 — ещё не блокировка")

	tr.Fail("alice")
	require.True(t, tr.Locked("alice"), "5-я неудача переводит в LOCKED")
}

func TestLocked_WindowSlides(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr, clock := newTestTracker(Config{MaxFailedAttempts: 3, Window: 10 * time.Minute}, start)

	tr.Fail("bob")
	*clock = start.Add(5 * time.Minute)
	tr.Fail("bob")
	tr.Fail("bob")
	require.True(t, tr.Locked("bob"))

	// Первая запись выпадает из окна — остаются две, блокировка снимается.
	*clock = start.Add(11 * time.Minute)
	require.False(t, tr.Locked("bob"))

	// Новая неудача снова добирает порог из записей внутри окна.
	tr.Fail("bob")
	require.True(t, tr.Locked("bob"))
}

func TestReset_ClearsHistoryCompletely(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr, _ := newTestTracker(Config{MaxFailedAttempts: 3, Window: 10 * time.Minute}, start)

	tr.Fail("carol")
	tr.Fail("carol")
	tr.Fail("carol")
	require.True(t, tr.Locked("carol"))

	tr.Reset("carol")
	require.False(t, tr.Locked("carol"))
	require.Zero(t, tr.RetryAfter("carol"))
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr, clock := newTestTracker(Config{MaxFailedAttempts: 3, Window: 10 * time.Minute}, start)

	require.Zero(t, tr.RetryAfter("dave"), "без блокировки RetryAfter == 0")

	tr.Fail("dave")
	*clock = start.Add(2 * time.Minute)
	tr.Fail("dave")
	tr.Fail("dave")

	// Старейшая запись в start: до её выхода из окна остаётся 8 минут.
	require.Equal(t, 8*time.Minute, tr.RetryAfter("dave"))

	*clock = start.Add(7 * time.Minute)
	require.Equal(t, 3*time.Minute, tr.RetryAfter("dave"))

	*clock = start.Add(10*time.Minute + time.Second)
	require.Zero(t, tr.RetryAfter("dave"))
	require.False(t, tr.Locked("dave"))
}

func TestNew_DefaultsOnInvalidConfig(t *testing.T) {
	t.Parallel()

	tr := New(Config{MaxFailedAttempts: 0, Window: -time.Minute})
	require.Equal(t, defaultMaxFailedAttempts, tr.cfg.MaxFailedAttempts)
	require.Equal(t, defaultWindow, tr.cfg.Window)
}

func TestSweep_DropsStaleIdentities(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr, clock := newTestTracker(Config{MaxFailedAttempts: 3, Window: 10 * time.Minute}, start)

	tr.Fail("stale")
	*clock = start.Add(5 * time.Minute)
	tr.Fail("fresh")

	*clock = start.Add(12 * time.Minute)
	tr.Sweep()

	tr.mu.Lock()
	_, staleKept := tr.failures["stale"]
	_, freshKept := tr.failures["fresh"]
	tr.mu.Unlock()

	require.False(t, staleKept, "идентичность без записей в окне удаляется")
	require.True(t, freshKept, "идентичность с живыми записями остаётся")
}

func TestFail_ConcurrentDoesNotUndercount(t *testing.T) {
	t.Parallel()

	tr := New(Config{MaxFailedAttempts: 50, Window: time.Hour})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Fail("eve")
		}()
	}
	wg.Wait()

	require.True(t, tr.Locked("eve"))
}
