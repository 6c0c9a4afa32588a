package platform

import (
	"sync"
	"time"

	"stm32boot-go/services/boot/halcore"
	"stm32boot-go/x/timex"
)

// TimerAlarm implements the alarm capability on a runtime timer. The expire
// callback runs on the timer goroutine.
type TimerAlarm struct {
	clock timex.Mono

	mu      sync.Mutex
	at      time.Duration
	expire  func()
	enabled bool
	gen     uint32 // stale timers compare unequal
	t       *time.Timer
}

func NewTimerAlarm() *TimerAlarm {
	return &TimerAlarm{clock: timex.NewMono()}
}

func (a *TimerAlarm) Now() time.Duration { return a.clock.Now() }

// SetAlarm replaces the deadline and callback; an enabled alarm is re-armed.
func (a *TimerAlarm) SetAlarm(at time.Duration, expire func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.at, a.expire = at, expire
	if a.enabled {
		a.armLocked()
	}
}

func (a *TimerAlarm) EnableAlarm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = true
	a.armLocked()
}

func (a *TimerAlarm) DisableAlarm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = false
	if a.t != nil {
		a.t.Stop()
		a.t = nil
	}
}

func (a *TimerAlarm) armLocked() {
	if a.t != nil {
		a.t.Stop()
	}
	a.gen++
	gen := a.gen
	a.t = time.AfterFunc(timex.Until(a.at, a.clock.Now()), func() { a.fire(gen) })
}

// fire runs the callback once, unless the alarm was disabled meanwhile.
func (a *TimerAlarm) fire(gen uint32) {
	a.mu.Lock()
	if !a.enabled || gen != a.gen || a.expire == nil {
		a.mu.Unlock()
		return
	}
	a.enabled = false
	fn := a.expire
	a.mu.Unlock()
	fn()
}

var _ halcore.Alarm = (*TimerAlarm)(nil)
