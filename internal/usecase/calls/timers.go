package calls

import (
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// expiryRetryDelay spaces out retries when an expiry write could not reach the store
	expiryRetryDelay = 2 * time.Second
	// maxExpiryRetries bounds those retries; after that the other party's
	// timer or an answer has to resolve the invitation
	maxExpiryRetries = 3
)

// expiryTimer is one armed ring window. token identifies the arming so a
// callback from a stopped or replaced timer can recognise itself as stale.
// Not safe for concurrent use; owners guard it with their own mutex.
type expiryTimer struct {
	timer    *clock.Timer
	token    uint64
	deadline time.Time
	retries  int
}

// armed reports whether a callback is scheduled
func (t *expiryTimer) armed() bool {
	return t != nil && t.timer != nil
}

// stop cancels the pending callback, keeping the deadline
func (t *expiryTimer) stop() {
	if t == nil || t.timer == nil {
		return
	}
	t.timer.Stop()
	t.timer = nil
}

// remaining returns the time left until the deadline, never negative
func (t *expiryTimer) remaining(now time.Time) time.Duration {
	if t == nil {
		return 0
	}
	if d := t.deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// retry counts one failed expiry write and reports whether another attempt is allowed
func (t *expiryTimer) retry() bool {
	if t.retries >= maxExpiryRetries {
		return false
	}
	t.retries++
	return true
}

// timerArmer hands out expiry timers with unique tokens
type timerArmer struct {
	clock clock.Clock
	seq   uint64
}

// arm schedules fire after d. The deadline is reset to now+d.
func (a *timerArmer) arm(t *expiryTimer, d time.Duration, fire func(token uint64)) {
	t.stop()
	a.seq++
	token := a.seq
	t.token = token
	t.deadline = a.clock.Now().Add(d)
	t.timer = a.clock.AfterFunc(d, func() { fire(token) })
}

// rearm schedules fire for whatever is left of the current deadline,
// or after retry if the deadline already passed.
func (a *timerArmer) rearm(t *expiryTimer, retry time.Duration, fire func(token uint64)) {
	d := t.remaining(a.clock.Now())
	if d <= 0 {
		d = retry
	}
	a.arm(t, d, fire)
}
