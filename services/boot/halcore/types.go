// services/boot/halcore/types.go
package halcore

import (
	"time"
)

// ---------------- Capabilities ----------------
//
// The bootloader core never touches hardware directly. The caller injects a
// Hardware bundle once per session; every field is one capability.

// Sender transmits one byte to the host. It must not block the engine for
// longer than one character time.
type Sender interface {
	WriteByte(b byte) error
}

// IRQGate is the global interrupt gate. The engine uses it for the ring
// drain critical section and as the last action of every session exit.
type IRQGate interface {
	DisableInterrupts()
	EnableInterrupts()
}

type Watchdog interface {
	Feed()
}

// Flash is the subset of a TinyGo BlockDevice the command bodies need.
// Offsets are relative to the start of the programmable area.
type Flash interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
	EraseBlockSize() int64
	EraseBlocks(start, n int64) error
}

// Alarm is a one-shot timer. Now and the alarm time share one monotonic
// time base. expire runs in the alarm's own context (ISR or goroutine) and
// must only set flags.
type Alarm interface {
	Now() time.Duration
	SetAlarm(at time.Duration, expire func())
	EnableAlarm()
	DisableAlarm()
}

// LogSink receives complete, already formatted lines. Best effort.
type LogSink interface {
	Log(line string)
}

// Hardware is the capability bundle handed to the engine.
type Hardware struct {
	UART     Sender
	IRQ      IRQGate
	Watchdog Watchdog
	Flash    Flash
	Alarm    Alarm   // required only with an inactivity timeout
	Log      LogSink // required only with logging enabled
}

// Needs lists the optional capabilities the current configuration requires.
type Needs struct {
	Alarm bool
	Log   bool
}

// Missing returns the names of required capabilities that are nil.
func (h Hardware) Missing(n Needs) []string {
	var out []string
	if n.Alarm && h.Alarm == nil {
		out = append(out, "alarm")
	}
	if h.UART == nil {
		out = append(out, "uart")
	}
	if h.Watchdog == nil {
		out = append(out, "watchdog")
	}
	if n.Log && h.Log == nil {
		out = append(out, "log")
	}
	if h.IRQ == nil {
		out = append(out, "irq")
	}
	if h.Flash == nil {
		out = append(out, "flash")
	}
	return out
}
