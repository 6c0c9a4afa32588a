package commands

import (
	"stm32boot-go/protocol"
	"stm32boot-go/services/boot"
	"stm32boot-go/x/conv"
)

// Erase (0x43): N then either 0x00 after N=0xFF (global) or N+1 page
// numbers and XOR(N, pages).
type Erase struct {
	phase int
	n     byte
}

func (*Erase) Descriptor() boot.Descriptor {
	return boot.Descriptor{
		Opcode:          protocol.CmdErase,
		Name:            "erase",
		ExtraFrameBytes: 255, // N=0xFE: 255 page numbers
	}
}

func (c *Erase) Reset() { c.phase, c.n = phaseSelect, 0 }

func (c *Erase) Step(s *boot.Session) boot.Status {
	switch c.phase {
	case phaseSelect:
		s.Ack()
		s.Expect(1)
		c.phase = phaseLength
		return boot.Continue

	case phaseLength:
		c.n = s.Frame()[0]
		if c.n == protocol.EraseGlobal {
			s.Expect(protocol.ChecksumSize)
		} else {
			s.Expect(int(c.n) + 1 + protocol.ChecksumSize)
		}
		c.phase = phasePayload
		return boot.Continue

	default:
		f := s.Frame()
		if c.n == protocol.EraseGlobal {
			if f[0] != ^byte(protocol.EraseGlobal) {
				s.Log("erase: bad global erase checksum")
				s.Nack()
				return boot.Done
			}
			return finishErase(s, eraseRange(s, 0, blockCount(s)))
		}
		if protocol.XOR(c.n, f...) != 0 {
			s.Log("erase: bad checksum")
			s.Nack()
			return boot.Done
		}
		pages := f[:len(f)-protocol.ChecksumSize]
		total := blockCount(s)
		for _, p := range pages {
			if int64(p) >= total {
				s.Log("erase: page ", conv.Dec(uint64(p)), " outside flash")
				s.Nack()
				return boot.Done
			}
		}
		for _, p := range pages {
			if err := eraseRange(s, int64(p), 1); err != nil {
				return finishErase(s, err)
			}
		}
		return finishErase(s, nil)
	}
}

// ExtendedErase (0x44): 16-bit N, then a special selector's checksum or
// N+1 16-bit page numbers and their XOR.
type ExtendedErase struct {
	phase int
	n     uint16
	nb    [2]byte
	skip  int // bytes of an oversized page list still to discard
}

const (
	// maxExtPages keeps the page list frame within the largest frame.
	maxExtPages = 128
	maxDiscard  = 2*maxExtPages + protocol.ChecksumSize
)

func (*ExtendedErase) Descriptor() boot.Descriptor {
	return boot.Descriptor{
		Opcode:          protocol.CmdExtendedErase,
		Name:            "extended_erase",
		ExtraFrameBytes: 2 * maxExtPages,
	}
}

func (c *ExtendedErase) Reset() { c.phase, c.n, c.skip = phaseSelect, 0, 0 }

func (c *ExtendedErase) Step(s *boot.Session) boot.Status {
	switch c.phase {
	case phaseSelect:
		s.Ack()
		s.Expect(2)
		c.phase = phaseLength
		return boot.Continue

	case phaseLength:
		f := s.Frame()
		c.nb = [2]byte{f[0], f[1]}
		c.n = uint16(f[0])<<8 | uint16(f[1])
		if special(c.n) {
			s.Expect(protocol.ChecksumSize)
		} else {
			rest := 2*(int(c.n)+1) + protocol.ChecksumSize
			if int(c.n)+1 > maxExtPages {
				// The host sends the whole list regardless; swallow it
				// so it is not read as command frames.
				s.Log("extended_erase: ", conv.Dec(uint64(c.n)+1), " pages requested")
				c.skip = rest
				s.Expect(min(rest, maxDiscard))
				c.phase = phaseDiscard
				return boot.Continue
			}
			s.Expect(rest)
		}
		c.phase = phasePayload
		return boot.Continue

	case phaseDiscard:
		c.skip -= len(s.Frame())
		if c.skip > 0 {
			s.Expect(min(c.skip, maxDiscard))
			return boot.Continue
		}
		s.Nack()
		return boot.Done

	default:
		f := s.Frame()
		if protocol.XOR(c.nb[0]^c.nb[1], f...) != 0 {
			s.Log("extended_erase: bad checksum")
			s.Nack()
			return boot.Done
		}
		total := blockCount(s)
		switch c.n {
		case protocol.ExtEraseMass:
			return finishErase(s, eraseRange(s, 0, total))
		case protocol.ExtEraseBank1:
			return finishErase(s, eraseRange(s, 0, total/2))
		case protocol.ExtEraseBank2:
			return finishErase(s, eraseRange(s, total/2, total-total/2))
		}
		pages := f[:len(f)-protocol.ChecksumSize]
		for i := 0; i < len(pages); i += 2 {
			if p := int64(pages[i])<<8 | int64(pages[i+1]); p >= total {
				s.Log("extended_erase: page ", conv.Dec(uint64(p)), " outside flash")
				s.Nack()
				return boot.Done
			}
		}
		for i := 0; i < len(pages); i += 2 {
			p := int64(pages[i])<<8 | int64(pages[i+1])
			if err := eraseRange(s, p, 1); err != nil {
				return finishErase(s, err)
			}
		}
		return finishErase(s, nil)
	}
}

func special(n uint16) bool {
	return n == protocol.ExtEraseMass || n == protocol.ExtEraseBank1 || n == protocol.ExtEraseBank2
}

func finishErase(s *boot.Session, err error) boot.Status {
	if err != nil {
		s.Log("erase: ", err.Error())
		s.Nack()
		return boot.Done
	}
	s.Ack()
	return boot.Done
}
