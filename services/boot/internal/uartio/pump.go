// Package uartio moves received UART bytes into the boot engine from a
// goroutine, standing in for the RX interrupt handler.
package uartio

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"stm32boot-go/x/mathx"
)

// Port is the receive side of a UART. uartx ports satisfy it directly;
// host serial ports go through platform.SerialUART.
type Port interface {
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

// Gate is an interrupt mask seen from the producer side. sync.Mutex
// satisfies it.
type Gate interface {
	TryLock() bool
	Unlock()
}

type ReaderCfg struct {
	Port Port
	// Deliver is called once per byte, in arrival order.
	Deliver func(b byte)
	// Gate, if set, is held while a chunk is delivered, the way an RX
	// interrupt cannot run while the engine has interrupts masked.
	Gate Gate
	// MaxChunk bounds one read (clamp 16..256).
	MaxChunk int
	// ReadTimeout bounds one blocking read to assist shutdown (clamp
	// 10ms..1s, default 250ms).
	ReadTimeout time.Duration
}

const gatePoll = 200 * time.Microsecond

var ErrNoPort = errors.New("uartio: port and deliver func required")

type Pump struct {
	cancel context.CancelFunc
	done   chan struct{}
	bytes  atomic.Uint64
	err    error
}

// Start launches the reader goroutine. It runs until ctx is cancelled, Stop
// is called or the port returns an error other than a read timeout.
func Start(ctx context.Context, cfg ReaderCfg) (*Pump, error) {
	if cfg.Port == nil || cfg.Deliver == nil {
		return nil, ErrNoPort
	}
	max := mathx.Clamp(cfg.MaxChunk, 16, 256)
	rt := cfg.ReadTimeout
	if rt == 0 {
		rt = 250 * time.Millisecond
	}
	rt = mathx.Clamp(rt, 10*time.Millisecond, time.Second)

	cctx, cancel := context.WithCancel(ctx)
	p := &Pump{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		buf := make([]byte, max)
		for {
			if cctx.Err() != nil {
				return
			}
			rctx, rcancel := context.WithTimeout(cctx, rt)
			n, err := cfg.Port.RecvSomeContext(rctx, buf)
			rcancel()
			if n > 0 && !p.deliver(cctx, cfg, buf[:n]) {
				return
			}
			if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				p.err = err
				return
			}
		}
	}()
	return p, nil
}

// deliver hands a chunk over once the gate is open. It gives up when ctx is
// done; a session that ended with the gate masked never reopens it.
func (p *Pump) deliver(ctx context.Context, cfg ReaderCfg, chunk []byte) bool {
	if cfg.Gate != nil {
		for !cfg.Gate.TryLock() {
			if ctx.Err() != nil {
				return false
			}
			time.Sleep(gatePoll)
		}
		defer cfg.Gate.Unlock()
	}
	for _, b := range chunk {
		cfg.Deliver(b)
	}
	p.bytes.Add(uint64(len(chunk)))
	return true
}

// Stop cancels the reader and waits for it to exit.
func (p *Pump) Stop() {
	p.cancel()
	<-p.done
}

// Done is closed when the reader has exited.
func (p *Pump) Done() <-chan struct{} { return p.done }

// Err is the port error that stopped the reader, valid after Done.
func (p *Pump) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Bytes is the number of bytes delivered so far.
func (p *Pump) Bytes() uint64 { return p.bytes.Load() }
