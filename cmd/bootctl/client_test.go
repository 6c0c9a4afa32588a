package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"stm32boot-go/errcode"
	"stm32boot-go/protocol"
	"stm32boot-go/services/boot"
	"stm32boot-go/services/boot/commands"
	"stm32boot-go/services/boot/halcore"
)

const (
	pageSize  = 1024
	pageCount = 16
)

// device runs a bootloader engine in lock step with the client: every
// Write is delivered and polled to completion before Write returns.
type device struct {
	e     *boot.Engine
	flash *halcore.MemFlash
	reply bytes.Buffer
}

func (d *device) WriteByte(b byte) error { return d.reply.WriteByte(b) }

func (d *device) Write(p []byte) (int, error) {
	for _, b := range p {
		d.e.OnByteReceived(b)
	}
	for i := 0; i < len(p)+4; i++ {
		if !d.e.Poll() {
			break
		}
	}
	return len(p), nil
}

func (d *device) Read(p []byte) (int, error) {
	if d.reply.Len() == 0 {
		return 0, nil // read timeout
	}
	return d.reply.Read(p)
}

func newDevice(t *testing.T) *device {
	t.Helper()
	d := &device{flash: halcore.NewMemFlash(pageCount*pageSize, pageSize)}
	hw := halcore.Null(0, 1)
	hw.UART = d
	hw.Flash = d.flash
	d.e = boot.New(hw, boot.NewRegistry(commands.Standard(protocol.DefaultFlashBase)...), boot.WithChipID(0x0413))
	if err := d.e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return d
}

func newClient(t *testing.T) (*Client, *device) {
	t.Helper()
	d := newDevice(t)
	c := NewClient(d, 5*time.Millisecond)
	if err := c.Init(3); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c, d
}

func TestClientInfoCommands(t *testing.T) {
	c, _ := newClient(t)
	ver, ops, err := c.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ver != protocol.Version || !bytes.Equal(ops, []byte{0x00, 0x01, 0x02, 0x11, 0x31, 0x43, 0x44}) {
		t.Errorf("Get = 0x%02X % X", ver, ops)
	}
	if v, err := c.GetVersion(); err != nil || v != protocol.Version {
		t.Errorf("GetVersion = 0x%02X, %v", v, err)
	}
	if id, err := c.GetID(); err != nil || id != 0x0413 {
		t.Errorf("GetID = 0x%04X, %v", id, err)
	}
}

func TestClientSecondInitIsNacked(t *testing.T) {
	c, _ := newClient(t)
	// The engine is past the handshake: INIT reads as half a command frame.
	if err := c.send(protocol.ByteInit); err != nil {
		t.Fatal(err)
	}
	if err := c.send(^byte(protocol.ByteInit)); err != nil {
		t.Fatal(err)
	}
	if err := c.ack(c.timeout); errors.Cause(err) != ErrNACK {
		t.Fatalf("second INIT: %v", err)
	}
}

func TestClientWriteReadSpansBlocks(t *testing.T) {
	c, d := newClient(t)
	data := make([]byte, 600)
	for i := range data {
		data[i] = byte(i * 7)
	}
	addr := uint32(protocol.DefaultFlashBase + 100)
	if err := c.Write(addr, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := d.flash.Bytes()[100:700]; !bytes.Equal(got, data) {
		t.Fatal("flash contents differ")
	}
	got, err := c.Read(addr, len(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("read back differs")
	}
}

func TestClientReadOutsideFlash(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.Read(protocol.DefaultFlashBase+pageCount*pageSize, 4)
	if errors.Cause(err) != ErrNACK {
		t.Fatalf("Read past flash: %v", err)
	}
	// The session survives a NACKed command.
	if _, err := c.GetID(); err != nil {
		t.Fatalf("GetID after NACK: %v", err)
	}
}

func TestClientErase(t *testing.T) {
	c, d := newClient(t)
	if err := d.flash.Load(make([]byte, pageCount*pageSize)); err != nil {
		t.Fatal(err)
	}
	if err := c.Erase([]byte{1, 3}); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if err := c.ExtendedErase([]uint16{5}); err != nil {
		t.Fatalf("ExtendedErase: %v", err)
	}
	img := d.flash.Bytes()
	for p := 0; p < pageCount; p++ {
		erased := img[p*pageSize] == halcore.ErasedByte
		want := p == 1 || p == 3 || p == 5
		if erased != want {
			t.Errorf("page %d erased=%v", p, erased)
		}
	}

	if err := c.ExtendedEraseSpecial(protocol.ExtEraseMass); err != nil {
		t.Fatalf("mass erase: %v", err)
	}
	if bytes.Count(d.flash.Bytes(), []byte{halcore.ErasedByte}) != pageCount*pageSize {
		t.Error("mass erase left data")
	}
	if err := c.Erase([]byte{}); errors.Cause(err) != ErrBadReq {
		t.Errorf("empty page list: %v", err)
	}
}

func TestClientQuitBeforeInit(t *testing.T) {
	d := newDevice(t)
	c := NewClient(d, 5*time.Millisecond)
	if err := c.Quit(); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	if ended, code := d.e.Ended(); !ended || code != errcode.Quit {
		t.Fatalf("ended=%v code=%s", ended, code)
	}
	if err := c.Init(2); errors.Cause(err) != ErrTimeout {
		t.Errorf("Init after quit: %v", err)
	}
}

// slowDevice holds back replies until delay after the first write and
// counts the INIT bytes it was sent.
type slowDevice struct {
	*device
	delay time.Duration
	until time.Time
	inits int
}

func (s *slowDevice) Write(p []byte) (int, error) {
	if s.until.IsZero() {
		s.until = time.Now().Add(s.delay)
	}
	if len(p) == 1 && p[0] == protocol.ByteInit {
		s.inits++
	}
	return s.device.Write(p)
}

func (s *slowDevice) Read(p []byte) (int, error) {
	if time.Now().Before(s.until) {
		return 0, nil
	}
	return s.device.Read(p)
}

func TestClientInitLateAck(t *testing.T) {
	s := &slowDevice{device: newDevice(t), delay: 30 * time.Millisecond}
	c := NewClient(s, 20*time.Millisecond)
	if err := c.Init(3); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if s.inits != 1 {
		t.Fatalf("sent %d INIT bytes, want 1", s.inits)
	}
	id, err := c.GetID()
	if err != nil || id != 0x0413 {
		t.Fatalf("GetID after late ack: 0x%04X %v", id, err)
	}
	if ended, code := s.e.Ended(); ended {
		t.Fatalf("session ended: %s", code)
	}
}

func TestClientInitDiscardsStaleInput(t *testing.T) {
	d := newDevice(t)
	d.reply.WriteString("\x55\x1f")
	c := NewClient(d, 5*time.Millisecond)
	if err := c.Init(1); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := c.GetVersion(); err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
}

func TestRunnerScript(t *testing.T) {
	d := newDevice(t)
	var out bytes.Buffer
	r := NewRunner(NewClient(d, 5*time.Millisecond), &out)
	script := `
# program two words and read them back
getid
erase all
write 0x08000010 DEADBEEF
read 0x08000010 4
xerase 2 3
`
	if err := r.RunScript(strings.NewReader(script)); err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	for _, want := range []string{"product id 0x0413", "erased", "wrote 4 bytes at 0x08000010", "de ad be ef"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunnerErrors(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"frobnicate", "unknown command"},
		{"read 0x08000000", "usage: read"},
		{"write 0x08000000 XYZ", "bad hex data"},
		{"erase 300", "bad page"},
		{"read nope 4", "bad number"},
		{`getid "unterminated`, "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r := NewRunner(NewClient(newDevice(t), 5*time.Millisecond), &bytes.Buffer{})
			err := r.Exec(tt.line)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Exec(%q) = %v, want %q", tt.line, err, tt.want)
			}
		})
	}
}

func TestRunnerQuitAfterInitRejected(t *testing.T) {
	r := NewRunner(NewClient(newDevice(t), 5*time.Millisecond), &bytes.Buffer{})
	if err := r.Exec("getid"); err != nil {
		t.Fatal(err)
	}
	if err := r.Exec("quit"); errors.Cause(err) != ErrBadReq {
		t.Fatalf("quit after init: %v", err)
	}
}
