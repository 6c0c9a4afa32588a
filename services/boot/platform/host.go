//go:build !(rp2040 || rp2350)

package platform

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/albenik/go-serial/v2"
	"github.com/golang/glog"

	"stm32boot-go/errcode"
	"stm32boot-go/services/boot/halcore"
	"stm32boot-go/types"
)

// ---- interrupt gate ----

// IRQGate stands in for the global interrupt mask on a host. The RX pump
// takes the same lock around delivery, so a masked engine sees no new bytes.
type IRQGate struct {
	sync.Mutex
	masked bool
}

func (g *IRQGate) DisableInterrupts() {
	if g.masked {
		return
	}
	g.Lock()
	g.masked = true
}

// EnableInterrupts is a no-op unless the gate is masked, so the final
// DisableInterrupts of a session may stay unmatched.
func (g *IRQGate) EnableInterrupts() {
	if !g.masked {
		return
	}
	g.masked = false
	g.Unlock()
}

// Masked reports whether the gate is held by the engine.
func (g *IRQGate) Masked() bool {
	if g.TryLock() {
		g.Unlock()
		return false
	}
	return true
}

// ---- logging ----

// GlogSink forwards engine lines to glog at verbosity Level.
type GlogSink struct {
	Level glog.Level
}

func (s GlogSink) Log(line string) { glog.V(s.Level).Info(line) }

// ---- watchdog ----

// CountingWatchdog has no hardware behind it; it counts feeds for
// diagnostics.
type CountingWatchdog struct {
	mu    sync.Mutex
	feeds uint64
	last  time.Time
}

func (w *CountingWatchdog) Feed() {
	w.mu.Lock()
	w.feeds++
	w.last = time.Now()
	w.mu.Unlock()
}

func (w *CountingWatchdog) Feeds() (uint64, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feeds, w.last
}

// ---- serial ----

// SerialPort is the subset of a go-serial port SerialUART needs.
type SerialPort interface {
	io.ReadWriteCloser
	ReadyToRead() (uint32, error)
}

// SerialUART adapts a host serial port to drivers.UART, the engine's
// sender capability and the RX pump's Port.
type SerialUART struct {
	p   SerialPort
	one [1]byte
}

func NewSerialUART(p SerialPort) *SerialUART { return &SerialUART{p: p} }

// OpenSerial opens name at format f. Reads return after at most
// readTimeout with whatever arrived.
func OpenSerial(name string, f types.SerialFormat, readTimeout time.Duration) (*SerialUART, error) {
	parity := serial.NoParity
	switch f.Parity {
	case types.ParityEven:
		parity = serial.EvenParity
	case types.ParityOdd:
		parity = serial.OddParity
	}
	stop := serial.OneStopBit
	if f.StopBits == 2 {
		stop = serial.TwoStopBits
	}
	ms := int(readTimeout / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	p, err := serial.Open(name,
		serial.WithBaudrate(int(f.Baud)),
		serial.WithDataBits(int(f.DataBits)),
		serial.WithParity(parity),
		serial.WithStopBits(stop),
		serial.WithReadTimeout(ms),
	)
	if err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "open " + name, Err: err}
	}
	return NewSerialUART(p), nil
}

func (u *SerialUART) Read(p []byte) (int, error)  { return u.p.Read(p) }
func (u *SerialUART) Write(p []byte) (int, error) { return u.p.Write(p) }
func (u *SerialUART) Close() error                { return u.p.Close() }

func (u *SerialUART) WriteByte(b byte) error {
	u.one[0] = b
	_, err := u.p.Write(u.one[:])
	return err
}

// Buffered reports the bytes waiting in the driver, 0 when unknown.
func (u *SerialUART) Buffered() int {
	n, err := u.p.ReadyToRead()
	if err != nil {
		return 0
	}
	return int(n)
}

// RecvSomeContext reads until at least one byte arrives, the port fails or
// ctx is done. Each port read is bounded by the open-time read timeout.
func (u *SerialUART) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := u.p.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

var (
	_ halcore.IRQGate  = (*IRQGate)(nil)
	_ halcore.LogSink  = GlogSink{}
	_ halcore.Watchdog = (*CountingWatchdog)(nil)
	_ halcore.Sender   = (*SerialUART)(nil)
)
