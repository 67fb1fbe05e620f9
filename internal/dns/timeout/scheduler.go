// Package timeout arms and cancels the per-query timeout timer (spec
// §6.3): the direct analogue of the original client's
// bind_executor(io_strand_, ...) on a boost::asio steady_timer's
// async_wait completion.
package timeout

import "time"

// Timer is an armed, cancellable one-shot timeout.
type Timer struct {
	cancel func() bool
}

// Cancel stops the timer. It reports whether the timer was stopped
// before firing; a false return means the fire callback has already
// been scheduled to run (or has run) and the caller must still check
// the query's done flag before acting on that.
func (t *Timer) Cancel() bool {
	return t.cancel()
}

// newTimerFunc creates a timer that calls fire after d. Production
// code always uses the real one (time.AfterFunc); tests substitute a
// synchronous fake so P7 can be asserted without a wall-clock sleep.
type newTimerFunc func(d time.Duration, fire func()) *Timer

func realNewTimer(d time.Duration, fire func()) *Timer {
	t := time.AfterFunc(d, fire)
	return &Timer{cancel: t.Stop}
}

// Scheduler arms per-query timeout timers. The zero value is not
// usable; construct with NewScheduler.
type Scheduler struct {
	newTimer newTimerFunc
}

// NewScheduler returns a Scheduler backed by real OS timers.
func NewScheduler() *Scheduler {
	return &Scheduler{newTimer: realNewTimer}
}

// Arm schedules onFire to run after d and returns a Timer that can
// cancel it. onFire runs on its own goroutine (as time.AfterFunc
// documents) — callers (the Dispatcher) are responsible for posting
// the actual work onto the strand rather than mutating shared state
// directly from inside onFire.
func (s *Scheduler) Arm(d time.Duration, onFire func()) *Timer {
	return s.newTimer(d, onFire)
}
