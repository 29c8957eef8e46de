package host

import "time"

// timer kicks the host when the operator wake-up fires. It is armed and
// cancelled only on the loop goroutine.
type timer struct {
	t    *time.Timer
	kick func()
}

// Arm replaces the pending wake-up.
func (t *timer) Arm(d time.Duration) {
	if t.t == nil {
		t.t = time.AfterFunc(d, t.kick)
		return
	}
	t.t.Stop()
	t.t.Reset(d)
}

// Cancel drops the pending wake-up.
func (t *timer) Cancel() {
	if t.t != nil {
		t.t.Stop()
	}
}
