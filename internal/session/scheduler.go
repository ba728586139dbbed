package session

import "time"

// Scheduler abstracts the timers behind overlay guard handling so the session
// logic stays testable without real sleeps.
type Scheduler interface {
	// After runs fn once d has elapsed and returns a cancel func. Cancel
	// reports whether it stopped the timer before fn ran.
	After(d time.Duration, fn func()) func() bool
}

type timerScheduler struct{}

// NewScheduler returns a Scheduler backed by time.AfterFunc.
func NewScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) After(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, fn)
	return t.Stop
}
