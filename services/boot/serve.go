package boot

import (
	"context"

	"stm32boot-go/errcode"
	"stm32boot-go/services/boot/internal/uartio"
)

// RxPort is the receive side of the bootloader UART. uartx ports and
// platform.SerialUART satisfy it.
type RxPort interface {
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

// RxGate is the producer side of a host interrupt gate (platform.IRQGate).
type RxGate interface {
	TryLock() bool
	Unlock()
}

// rxFailure is the cancel cause when the reader stops on a port error.
type rxFailure struct{ err error }

func (f *rxFailure) Error() string { return "rx: " + f.err.Error() }
func (f *rxFailure) Unwrap() error { return f.err }

// Serve starts a session whose bytes come from a reader goroutine on port
// instead of an RX interrupt. gate may be nil when the IRQ capability masks
// real interrupts. A port failure ends the session with code error.
func (e *Engine) Serve(ctx context.Context, port RxPort, gate RxGate) error {
	if err := e.Start(); err != nil {
		return err
	}
	cctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	cfg := uartio.ReaderCfg{Port: port, Deliver: e.OnByteReceived}
	if gate != nil {
		cfg.Gate = gate
	}
	pump, err := uartio.Start(cctx, cfg)
	if err != nil {
		e.finish(errcode.InvalidConfig, err.Error())
		return e.err
	}
	go func() {
		select {
		case <-pump.Done():
			if perr := pump.Err(); perr != nil {
				cancel(&rxFailure{err: perr})
			}
		case <-cctx.Done():
		}
	}()

	err = e.loop(cctx)
	cancel(nil)
	<-pump.Done()
	return err
}
