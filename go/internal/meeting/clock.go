package meeting

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// Task is a handle to a scheduled periodic poll.
type Task interface {
	// Cancel stops future invocations. It is safe to call more than once and
	// from inside the task's own callback.
	Cancel()
}

// Scheduler runs fn every interval until the returned Task is cancelled.
type Scheduler interface {
	Schedule(interval time.Duration, fn func()) Task
}

// TickerScheduler runs each task on its own goroutine driven by a clock ticker.
type TickerScheduler struct {
	clock Clock
}

// NewTickerScheduler creates a scheduler on top of clock.
func NewTickerScheduler(clock Clock) *TickerScheduler {
	return &TickerScheduler{clock: clock}
}

// Schedule implements Scheduler.
func (s *TickerScheduler) Schedule(interval time.Duration, fn func()) Task {
	t := &tickerTask{
		ticker: s.clock.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type tickerTask struct {
	ticker clockwork.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *tickerTask) run(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.Chan():
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

// Cancel stops the ticker before returning; the goroutine exits on its next wakeup.
func (t *tickerTask) Cancel() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
