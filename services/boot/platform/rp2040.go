//go:build rp2040

package platform

import (
	"machine"
	"runtime/interrupt"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"stm32boot-go/errcode"
	"stm32boot-go/services/boot/halcore"
	"stm32boot-go/types"
)

// ---- interrupt gate ----

// IRQGate masks interrupts on the core running the engine.
type IRQGate struct {
	state  interrupt.State
	masked bool
}

func (g *IRQGate) DisableInterrupts() {
	if g.masked {
		return
	}
	g.state = interrupt.Disable()
	g.masked = true
}

func (g *IRQGate) EnableInterrupts() {
	if !g.masked {
		return
	}
	g.masked = false
	interrupt.Restore(g.state)
}

// ---- logging ----

// PrintlnSink writes engine lines to the console.
type PrintlnSink struct{}

func (PrintlnSink) Log(line string) { println(line) }

// ---- watchdog ----

// Watchdog drives the RP2040 hardware watchdog.
type Watchdog struct{}

// StartWatchdog arms the hardware watchdog; the engine must then feed it
// at least every timeoutMs.
func StartWatchdog(timeoutMs uint32) Watchdog {
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: timeoutMs})
	machine.Watchdog.Start()
	return Watchdog{}
}

func (Watchdog) Feed() { machine.Watchdog.Update() }

// ---- flash ----

// Flash is the data area after the firmware image.
func Flash() halcore.Flash { return machine.Flash }

// ---- uart ----

// OpenUART configures uart0 or uart1 at format f on the given pins.
func OpenUART(id string, f types.SerialFormat, tx, rx machine.Pin) (*uartx.UART, error) {
	var hw *uartx.UART
	switch id {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "uart", Msg: "unknown port " + id}
	}
	// Defaults inside uartx apply if zero.
	if err := hw.Configure(uartx.UARTConfig{BaudRate: f.Baud, TX: tx, RX: rx}); err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "uart", Msg: id, Err: err}
	}
	var par uartx.UARTParity
	switch f.Parity {
	case types.ParityEven:
		par = uartx.ParityEven
	case types.ParityOdd:
		par = uartx.ParityOdd
	default:
		par = uartx.ParityNone
	}
	if err := hw.SetFormat(f.DataBits, f.StopBits, par); err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "uart", Msg: id, Err: err}
	}
	return hw, nil
}

var (
	_ halcore.IRQGate  = (*IRQGate)(nil)
	_ halcore.LogSink  = PrintlnSink{}
	_ halcore.Watchdog = Watchdog{}
)
