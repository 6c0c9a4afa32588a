package main

import (
	"io"
	"time"

	"github.com/pkg/errors"

	"stm32boot-go/protocol"
)

var (
	ErrNACK    = errors.New("nack")
	ErrTimeout = errors.New("timeout")
	ErrBadReq  = errors.New("bad request")
)

// Client talks AN3155 to a bootloader over a port whose reads return
// (0, nil) after a short read timeout.
type Client struct {
	rw      io.ReadWriter
	timeout time.Duration // per reply
	erase   time.Duration // per erase reply
	synced  bool
}

func NewClient(rw io.ReadWriter, timeout time.Duration) *Client {
	return &Client{rw: rw, timeout: timeout, erase: 20 * timeout}
}

// readFull reads exactly len(p) bytes or fails once d has passed without
// completing.
func (c *Client) readFull(p []byte, d time.Duration) error {
	deadline := time.Now().Add(d)
	got := 0
	for got < len(p) {
		n, err := c.rw.Read(p[got:])
		got += n
		if err != nil && err != io.EOF {
			return errors.Wrap(err, "read")
		}
		if n == 0 && time.Now().After(deadline) {
			return errors.Wrapf(ErrTimeout, "got %d of %d bytes", got, len(p))
		}
	}
	return nil
}

func (c *Client) ack(d time.Duration) error {
	var b [1]byte
	if err := c.readFull(b[:], d); err != nil {
		return err
	}
	switch b[0] {
	case protocol.ByteACK:
		return nil
	case protocol.ByteNACK:
		return ErrNACK
	}
	return errors.Errorf("expected ACK, got 0x%02X", b[0])
}

func (c *Client) send(p ...byte) error {
	_, err := c.rw.Write(p)
	return errors.Wrap(err, "write")
}

// discard drops whatever the port has buffered.
func (c *Client) discard() error {
	var buf [64]byte
	for {
		n, err := c.rw.Read(buf[:])
		if err != nil && err != io.EOF {
			return errors.Wrap(err, "read")
		}
		if n == 0 {
			return nil
		}
	}
}

// Init sends INIT until the bootloader answers. After a timeout it waits
// once more before resending: an INIT that reaches a synced bootloader is
// read as the first byte of a command frame. Any byte ends the retries.
func (c *Client) Init(tries int) error {
	if err := c.discard(); err != nil {
		return errors.Wrap(err, "init")
	}
	var b [1]byte
	for i := 0; i < tries; i++ {
		if err := c.send(protocol.ByteInit); err != nil {
			return err
		}
		err := c.readFull(b[:], c.timeout)
		if errors.Cause(err) == ErrTimeout {
			err = c.readFull(b[:], c.timeout) // late reply
		}
		if errors.Cause(err) == ErrTimeout {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "init")
		}
		switch b[0] {
		case protocol.ByteACK:
			c.synced = true
			return nil
		case protocol.ByteNACK:
			return errors.Wrap(ErrNACK, "init")
		}
		return errors.Errorf("init: expected ACK, got 0x%02X", b[0])
	}
	return errors.Wrap(ErrTimeout, "init")
}

// Quit asks a bootloader that has not seen INIT yet to end its session.
func (c *Client) Quit() error {
	if c.synced {
		return errors.Wrap(ErrBadReq, "quit after init")
	}
	return c.send(protocol.ByteQuit)
}

func (c *Client) command(op byte) error {
	if err := c.send(protocol.CommandFrame(op)...); err != nil {
		return err
	}
	return errors.Wrapf(c.ack(c.timeout), "command 0x%02X", op)
}

// Get returns the protocol version and the supported opcodes.
func (c *Client) Get() (byte, []byte, error) {
	if err := c.command(protocol.CmdGet); err != nil {
		return 0, nil, err
	}
	var n [1]byte
	if err := c.readFull(n[:], c.timeout); err != nil {
		return 0, nil, errors.Wrap(err, "get")
	}
	buf := make([]byte, int(n[0])+1)
	if err := c.readFull(buf, c.timeout); err != nil {
		return 0, nil, errors.Wrap(err, "get")
	}
	return buf[0], buf[1:], errors.Wrap(c.ack(c.timeout), "get")
}

func (c *Client) GetVersion() (byte, error) {
	if err := c.command(protocol.CmdGetVersion); err != nil {
		return 0, err
	}
	var buf [3]byte
	if err := c.readFull(buf[:], c.timeout); err != nil {
		return 0, errors.Wrap(err, "get version")
	}
	return buf[0], errors.Wrap(c.ack(c.timeout), "get version")
}

func (c *Client) GetID() (uint16, error) {
	if err := c.command(protocol.CmdGetID); err != nil {
		return 0, err
	}
	var n [1]byte
	if err := c.readFull(n[:], c.timeout); err != nil {
		return 0, errors.Wrap(err, "get id")
	}
	buf := make([]byte, int(n[0])+1)
	if err := c.readFull(buf, c.timeout); err != nil {
		return 0, errors.Wrap(err, "get id")
	}
	if len(buf) != 2 {
		return 0, errors.Errorf("get id: %d id bytes", len(buf))
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), errors.Wrap(c.ack(c.timeout), "get id")
}

func (c *Client) address(addr uint32) error {
	if err := c.send(protocol.AddressFrame(addr)...); err != nil {
		return err
	}
	return errors.Wrapf(c.ack(c.timeout), "address 0x%08X", addr)
}

func (c *Client) readBlock(addr uint32, p []byte) error {
	if len(p) < 1 || len(p) > protocol.MaxTransfer {
		return ErrBadReq
	}
	if err := c.command(protocol.CmdReadMemory); err != nil {
		return err
	}
	if err := c.address(addr); err != nil {
		return err
	}
	if err := c.send(protocol.CommandFrame(byte(len(p) - 1))...); err != nil {
		return err
	}
	if err := c.ack(c.timeout); err != nil {
		return errors.Wrap(err, "length")
	}
	return c.readFull(p, c.timeout)
}

// Read reads n bytes from addr in blocks of up to 256.
func (c *Client) Read(addr uint32, n int) ([]byte, error) {
	out := make([]byte, n)
	for off := 0; off < n; off += protocol.MaxTransfer {
		end := min(off+protocol.MaxTransfer, n)
		a := addr + uint32(off)
		if err := c.readBlock(a, out[off:end]); err != nil {
			return out[:off], errors.Wrapf(err, "read memory at 0x%08X", a)
		}
	}
	return out, nil
}

func (c *Client) writeBlock(addr uint32, p []byte) error {
	if len(p) < 1 || len(p) > protocol.MaxTransfer {
		return ErrBadReq
	}
	if err := c.command(protocol.CmdWriteMemory); err != nil {
		return err
	}
	if err := c.address(addr); err != nil {
		return err
	}
	frame := protocol.DataFrame(append([]byte{byte(len(p) - 1)}, p...)...)
	if err := c.send(frame...); err != nil {
		return err
	}
	return errors.Wrap(c.ack(c.timeout), "data")
}

// Write writes data at addr in blocks of up to 256.
func (c *Client) Write(addr uint32, data []byte) error {
	for off := 0; off < len(data); off += protocol.MaxTransfer {
		end := min(off+protocol.MaxTransfer, len(data))
		a := addr + uint32(off)
		if err := c.writeBlock(a, data[off:end]); err != nil {
			return errors.Wrapf(err, "write memory at 0x%08X", a)
		}
	}
	return nil
}

// Erase erases the given pages, or all of flash when pages is nil.
func (c *Client) Erase(pages []byte) error {
	if pages != nil && (len(pages) == 0 || len(pages) > 255) {
		return errors.Wrapf(ErrBadReq, "erase: %d pages", len(pages))
	}
	if err := c.command(protocol.CmdErase); err != nil {
		return err
	}
	var frame []byte
	if pages == nil {
		frame = []byte{protocol.EraseGlobal, 0x00}
	} else {
		frame = protocol.DataFrame(append([]byte{byte(len(pages) - 1)}, pages...)...)
	}
	if err := c.send(frame...); err != nil {
		return err
	}
	return errors.Wrap(c.ack(c.erase), "erase")
}

// ExtendedErase erases 16-bit page numbers.
func (c *Client) ExtendedErase(pages []uint16) error {
	if len(pages) == 0 {
		return errors.Wrap(ErrBadReq, "extended erase: no pages")
	}
	n := len(pages) - 1
	data := []byte{byte(n >> 8), byte(n)}
	for _, p := range pages {
		data = append(data, byte(p>>8), byte(p))
	}
	return c.extendedErase(data)
}

// ExtendedEraseSpecial sends one of the mass/bank selectors.
func (c *Client) ExtendedEraseSpecial(sel uint16) error {
	return c.extendedErase([]byte{byte(sel >> 8), byte(sel)})
}

func (c *Client) extendedErase(data []byte) error {
	if err := c.command(protocol.CmdExtendedErase); err != nil {
		return err
	}
	if err := c.send(protocol.DataFrame(data...)...); err != nil {
		return err
	}
	return errors.Wrap(c.ack(c.erase), "extended erase")
}
