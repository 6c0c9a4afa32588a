//go:build !(rp2040 || rp2350)

package platform

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --- fakes ---

// fakePort is a SerialPort whose reads time out empty when nothing is queued.
type fakePort struct {
	mu     sync.Mutex
	rx     []byte
	tx     bytes.Buffer
	closed bool
	err    error
}

func (f *fakePort) queue(b ...byte) { f.mu.Lock(); f.rx = append(f.rx, b...); f.mu.Unlock() }

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	n := copy(p, f.rx)
	f.rx = f.rx[n:]
	err := f.err
	f.mu.Unlock()
	if n == 0 && err == nil {
		time.Sleep(time.Millisecond) // read timeout
	}
	return n, err
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tx.Write(p)
}

func (f *fakePort) Close() error { f.mu.Lock(); f.closed = true; f.mu.Unlock(); return nil }

func (f *fakePort) ReadyToRead() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint32(len(f.rx)), f.err
}

// --- tests ---

func TestUARTSender(t *testing.T) {
	p := &fakePort{}
	s := NewUARTSender(NewSerialUART(p))
	for _, b := range []byte{0x79, 0x1F} {
		if err := s.WriteByte(b); err != nil {
			t.Fatal(err)
		}
	}
	if got := p.tx.Bytes(); !bytes.Equal(got, []byte{0x79, 0x1F}) {
		t.Errorf("tx % X", got)
	}
}

func TestSerialUARTRecvSomeContext(t *testing.T) {
	p := &fakePort{}
	u := NewSerialUART(p)
	buf := make([]byte, 8)

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.queue(0x7F, 0x00)
	}()
	n, err := u.RecvSomeContext(context.Background(), buf)
	if err != nil || n != 2 || buf[0] != 0x7F {
		t.Fatalf("n=%d err=%v buf=% X", n, err, buf[:n])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := u.RecvSomeContext(ctx, buf); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("idle read: %v", err)
	}

	boom := errors.New("unplugged")
	p.mu.Lock()
	p.err = boom
	p.mu.Unlock()
	if _, err := u.RecvSomeContext(context.Background(), buf); !errors.Is(err, boom) {
		t.Errorf("port error: %v", err)
	}
	if u.Buffered() != 0 {
		t.Errorf("Buffered on error = %d", u.Buffered())
	}
}

func TestSerialUARTBuffered(t *testing.T) {
	p := &fakePort{}
	u := NewSerialUART(p)
	p.queue(1, 2, 3)
	if got := u.Buffered(); got != 3 {
		t.Errorf("Buffered=%d", got)
	}
	_ = u.Close()
	if !p.closed {
		t.Error("Close not forwarded")
	}
}

func TestIRQGate(t *testing.T) {
	var g IRQGate
	if g.Masked() {
		t.Fatal("new gate masked")
	}
	g.DisableInterrupts()
	g.DisableInterrupts() // nested disable must not deadlock
	if !g.Masked() {
		t.Fatal("gate not masked after disable")
	}
	if g.TryLock() {
		t.Fatal("producer got through a masked gate")
	}
	g.EnableInterrupts()
	g.EnableInterrupts()
	if g.Masked() {
		t.Fatal("gate still masked after enable")
	}
	if !g.TryLock() {
		t.Fatal("producer blocked on open gate")
	}
	g.Unlock()
}

func TestTimerAlarmFires(t *testing.T) {
	a := NewTimerAlarm()
	var fired atomic.Int32
	a.SetAlarm(a.Now()+5*time.Millisecond, func() { fired.Add(1) })
	a.EnableAlarm()

	deadline := time.Now().Add(time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times", got)
	}
}

func TestTimerAlarmDisabled(t *testing.T) {
	a := NewTimerAlarm()
	var fired atomic.Int32
	a.SetAlarm(a.Now()+10*time.Millisecond, func() { fired.Add(1) })
	a.EnableAlarm()
	a.DisableAlarm()
	time.Sleep(30 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("disabled alarm fired")
	}
}

func TestTimerAlarmPastDeadline(t *testing.T) {
	a := NewTimerAlarm()
	time.Sleep(2 * time.Millisecond)
	done := make(chan struct{})
	a.SetAlarm(0, func() { close(done) })
	a.EnableAlarm()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("alarm in the past did not fire")
	}
}

func TestTimerAlarmRearm(t *testing.T) {
	a := NewTimerAlarm()
	var first, second atomic.Int32
	a.SetAlarm(a.Now()+5*time.Millisecond, func() { first.Add(1) })
	a.EnableAlarm()
	a.SetAlarm(a.Now()+15*time.Millisecond, func() { second.Add(1) })
	time.Sleep(40 * time.Millisecond)
	if first.Load() != 0 || second.Load() != 1 {
		t.Fatalf("first=%d second=%d", first.Load(), second.Load())
	}
}

func TestGlogSink(t *testing.T) {
	// Below the default verbosity: must be silent and not panic.
	GlogSink{Level: 5}.Log("[boot] test line")
}

func TestCountingWatchdog(t *testing.T) {
	var w CountingWatchdog
	w.Feed()
	w.Feed()
	if n, last := w.Feeds(); n != 2 || last.IsZero() {
		t.Errorf("feeds=%d last=%v", n, last)
	}
}
