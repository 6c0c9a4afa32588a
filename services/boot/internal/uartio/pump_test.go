package uartio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// --- minimal fake UART receive side ---

type fakeUART struct {
	mu  sync.Mutex
	rx  []byte
	rd  chan struct{}
	err error
}

func newFakeUART() *fakeUART { return &fakeUART{rd: make(chan struct{}, 1)} }

func (f *fakeUART) inject(b []byte) {
	f.mu.Lock()
	f.rx = append(f.rx, b...)
	if len(f.rd) == 0 {
		f.rd <- struct{}{}
	}
	f.mu.Unlock()
}

func (f *fakeUART) fail(err error) {
	f.mu.Lock()
	f.err = err
	if len(f.rd) == 0 {
		f.rd <- struct{}{}
	}
	f.mu.Unlock()
}

func (f *fakeUART) read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(p, f.rx)
	f.rx = f.rx[n:]
	if n == 0 && f.err != nil {
		return 0, f.err
	}
	return n, nil
}

func (f *fakeUART) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	for {
		if n, err := f.read(p); n > 0 || err != nil {
			return n, err
		}
		select {
		case <-f.rd:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// sink collects delivered bytes.
type sink struct {
	mu  sync.Mutex
	got []byte
}

func (s *sink) deliver(b byte) { s.mu.Lock(); s.got = append(s.got, b); s.mu.Unlock() }

func (s *sink) waitLen(n int, d time.Duration) []byte {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.got) >= n {
			out := append([]byte(nil), s.got...)
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.got...)
}

// --- tests ---

func TestPumpDeliversInOrder(t *testing.T) {
	u := newFakeUART()
	var s sink
	p, err := Start(context.Background(), ReaderCfg{Port: u, Deliver: s.deliver, MaxChunk: 16})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	u.inject([]byte{0x7F})
	u.inject([]byte("0123456789abcdefghij")) // longer than one chunk
	want := append([]byte{0x7F}, "0123456789abcdefghij"...)
	if got := s.waitLen(len(want), time.Second); string(got) != string(want) {
		t.Fatalf("got %q want %q", got, want)
	}
	if p.Bytes() != uint64(len(want)) {
		t.Errorf("Bytes=%d want %d", p.Bytes(), len(want))
	}
}

func TestPumpStop(t *testing.T) {
	u := newFakeUART()
	var s sink
	p, err := Start(context.Background(), ReaderCfg{Port: u, Deliver: s.deliver, ReadTimeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stopped := make(chan struct{})
	go func() { p.Stop(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	if p.Err() != nil {
		t.Errorf("Err after Stop: %v", p.Err())
	}
}

func TestPumpParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var s sink
	p, err := Start(ctx, ReaderCfg{Port: newFakeUART(), Deliver: s.deliver})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("pump still running after cancel")
	}
}

func TestPumpPortError(t *testing.T) {
	u := newFakeUART()
	var s sink
	p, err := Start(context.Background(), ReaderCfg{Port: u, Deliver: s.deliver})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	boom := errors.New("port closed")
	u.fail(boom)
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("pump did not exit on port error")
	}
	if !errors.Is(p.Err(), boom) {
		t.Errorf("Err=%v want %v", p.Err(), boom)
	}
}

// gate records whether delivery happened while it was held.
type gate struct {
	mu   sync.Mutex
	held bool
}

func (g *gate) TryLock() bool {
	if !g.mu.TryLock() {
		return false
	}
	g.held = true
	return true
}

func (g *gate) Unlock() { g.held = false; g.mu.Unlock() }

func TestPumpDeliversUnderGate(t *testing.T) {
	u := newFakeUART()
	g := &gate{}
	var (
		mu      sync.Mutex
		outside int
		n       int
	)
	deliver := func(byte) {
		mu.Lock()
		if !g.held {
			outside++
		}
		n++
		mu.Unlock()
	}
	p, err := Start(context.Background(), ReaderCfg{Port: u, Deliver: deliver, Gate: g})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	// Hold the gate: nothing may arrive until it is released.
	g.mu.Lock()
	g.held = true
	u.inject([]byte{1, 2, 3})
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	early := n
	mu.Unlock()
	g.Unlock()
	if early != 0 {
		t.Fatalf("%d bytes delivered while gate held", early)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		done := n == 3
		mu.Unlock()
		if done || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if n != 3 || outside != 0 {
		t.Errorf("delivered=%d outside gate=%d", n, outside)
	}
}

func TestPumpStopWhileGateMasked(t *testing.T) {
	u := newFakeUART()
	var g sync.Mutex
	var s sink
	p, err := Start(context.Background(), ReaderCfg{Port: u, Deliver: s.deliver, Gate: &g})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	g.Lock() // an ended session leaves the gate masked
	u.inject([]byte{0x7F})
	time.Sleep(10 * time.Millisecond)

	stopped := make(chan struct{})
	go func() { p.Stop(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on masked gate")
	}
	if got := s.waitLen(1, 0); len(got) != 0 {
		t.Errorf("delivered %v through masked gate", got)
	}
}

func TestStartRequiresPortAndSink(t *testing.T) {
	if _, err := Start(context.Background(), ReaderCfg{Deliver: func(byte) {}}); !errors.Is(err, ErrNoPort) {
		t.Errorf("nil port: %v", err)
	}
	if _, err := Start(context.Background(), ReaderCfg{Port: newFakeUART()}); !errors.Is(err, ErrNoPort) {
		t.Errorf("nil deliver: %v", err)
	}
}
