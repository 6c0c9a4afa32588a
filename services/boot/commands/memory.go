package commands

import (
	"stm32boot-go/protocol"
	"stm32boot-go/services/boot"
	"stm32boot-go/x/conv"
)

const (
	phaseSelect = iota
	phaseAddress
	phaseLength
	phasePayload
	phaseDiscard
)

// ReadMemory: address frame, then N/^N, then N+1 bytes back.
type ReadMemory struct {
	base  uint32
	phase int
	addr  uint32
	buf   [protocol.MaxTransfer]byte
}

func (*ReadMemory) Descriptor() boot.Descriptor {
	return boot.Descriptor{
		Opcode:          protocol.CmdReadMemory,
		Name:            "read_memory",
		ExtraFrameBytes: protocol.AddressFrameSize - protocol.ChecksumSize,
	}
}

func (c *ReadMemory) Reset() { c.phase, c.addr = phaseSelect, 0 }

func (c *ReadMemory) Step(s *boot.Session) boot.Status {
	switch c.phase {
	case phaseSelect:
		s.Ack()
		s.Expect(protocol.AddressFrameSize)
		c.phase = phaseAddress
		return boot.Continue

	case phaseAddress:
		addr, ok := takeAddress(s, c.base)
		if !ok {
			return boot.Done
		}
		c.addr = addr
		s.Ack()
		s.Expect(protocol.CommandFrameSize)
		c.phase = phaseLength
		return boot.Continue

	default:
		f := s.Frame()
		if !protocol.Validate(f) {
			s.Log("read_memory: bad length checksum")
			s.Nack()
			return boot.Done
		}
		n := int(f[0]) + 1
		off, ok := flashOffset(s, c.base, c.addr, n)
		if !ok {
			s.Log("read_memory: ", conv.Dec(uint64(n)), " bytes at ", conv.Hex32(c.addr), " outside flash")
			s.Nack()
			return boot.Done
		}
		if _, err := s.Flash().ReadAt(c.buf[:n], off); err != nil {
			s.Log("read_memory: ", err.Error())
			s.Nack()
			return boot.Done
		}
		s.Ack()
		s.Send(c.buf[:n]...)
		return boot.Done
	}
}

// WriteMemory: address frame, then N, then N+1 bytes and XOR(N, data).
type WriteMemory struct {
	base  uint32
	phase int
	addr  uint32
	n     byte
}

func (*WriteMemory) Descriptor() boot.Descriptor {
	return boot.Descriptor{
		Opcode:          protocol.CmdWriteMemory,
		Name:            "write_memory",
		ExtraFrameBytes: protocol.MaxTransfer,
	}
}

func (c *WriteMemory) Reset() { c.phase, c.addr, c.n = phaseSelect, 0, 0 }

func (c *WriteMemory) Step(s *boot.Session) boot.Status {
	switch c.phase {
	case phaseSelect:
		s.Ack()
		s.Expect(protocol.AddressFrameSize)
		c.phase = phaseAddress
		return boot.Continue

	case phaseAddress:
		addr, ok := takeAddress(s, c.base)
		if !ok {
			return boot.Done
		}
		c.addr = addr
		s.Ack()
		s.Expect(1)
		c.phase = phaseLength
		return boot.Continue

	case phaseLength:
		c.n = s.Frame()[0]
		s.Expect(int(c.n) + 1 + protocol.ChecksumSize)
		c.phase = phasePayload
		return boot.Continue

	default:
		f := s.Frame()
		if protocol.XOR(c.n, f...) != 0 {
			s.Log("write_memory: bad data checksum")
			s.Nack()
			return boot.Done
		}
		data := f[:len(f)-protocol.ChecksumSize]
		off, ok := flashOffset(s, c.base, c.addr, len(data))
		if !ok {
			s.Log("write_memory: ", conv.Dec(uint64(len(data))), " bytes at ", conv.Hex32(c.addr), " outside flash")
			s.Nack()
			return boot.Done
		}
		if _, err := s.Flash().WriteAt(data, off); err != nil {
			s.Log("write_memory: ", err.Error())
			s.Nack()
			return boot.Done
		}
		s.Ack()
		return boot.Done
	}
}

// takeAddress validates the current address frame and NACKs on failure.
func takeAddress(s *boot.Session, base uint32) (uint32, bool) {
	f := s.Frame()
	if !protocol.ValidateXOR(f) {
		s.Log("bad address checksum")
		s.Nack()
		return 0, false
	}
	addr := protocol.Address(f)
	if _, ok := flashOffset(s, base, addr, 1); !ok {
		s.Log("address ", conv.Hex32(addr), " outside flash")
		s.Nack()
		return 0, false
	}
	return addr, true
}
