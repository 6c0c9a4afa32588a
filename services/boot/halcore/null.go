package halcore

import "time"

// Null objects, one per capability, for tests and for targets that lack the
// hardware. None of them has observable side effects.

type NopSender struct{}

func (NopSender) WriteByte(byte) error { return nil }

type NopIRQ struct{}

func (NopIRQ) DisableInterrupts() {}
func (NopIRQ) EnableInterrupts()  {}

type NopWatchdog struct{}

func (NopWatchdog) Feed() {}

// NopAlarm never expires.
type NopAlarm struct{}

func (NopAlarm) Now() time.Duration              { return 0 }
func (NopAlarm) SetAlarm(time.Duration, func()) {}
func (NopAlarm) EnableAlarm()                    {}
func (NopAlarm) DisableAlarm()                   {}

type DiscardLog struct{}

func (DiscardLog) Log(string) {}

// LogFunc adapts a plain function (println, a logger method) to LogSink.
type LogFunc func(line string)

func (f LogFunc) Log(line string) { f(line) }

// Null returns a bundle where every capability is present and inert, with
// an erased in-memory flash of the given geometry.
func Null(flashSize, blockSize int) Hardware {
	return Hardware{
		UART:     NopSender{},
		IRQ:      NopIRQ{},
		Watchdog: NopWatchdog{},
		Flash:    NewMemFlash(flashSize, blockSize),
		Alarm:    NopAlarm{},
		Log:      DiscardLog{},
	}
}
