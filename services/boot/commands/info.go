package commands

import (
	"stm32boot-go/protocol"
	"stm32boot-go/services/boot"
)

// Get reports the protocol version and the supported opcodes.
type Get struct{}

func (*Get) Descriptor() boot.Descriptor {
	return boot.Descriptor{Opcode: protocol.CmdGet, Name: "get"}
}
func (*Get) Reset() {}

func (*Get) Step(s *boot.Session) boot.Status {
	ops := s.Opcodes()
	s.Ack()
	s.Send(byte(len(ops)), s.Version())
	s.Send(ops...)
	s.Ack()
	return boot.Done
}

// GetVersion reports the protocol version and two (zero) option bytes.
type GetVersion struct{}

func (*GetVersion) Descriptor() boot.Descriptor {
	return boot.Descriptor{Opcode: protocol.CmdGetVersion, Name: "get_version"}
}
func (*GetVersion) Reset() {}

func (*GetVersion) Step(s *boot.Session) boot.Status {
	s.Ack()
	s.Send(s.Version(), 0x00, 0x00)
	s.Ack()
	return boot.Done
}

// GetID reports the chip identifier the session was started with.
type GetID struct{}

func (*GetID) Descriptor() boot.Descriptor {
	return boot.Descriptor{Opcode: protocol.CmdGetID, Name: "get_id"}
}
func (*GetID) Reset() {}

func (*GetID) Step(s *boot.Session) boot.Status {
	id := s.ChipID()
	s.Ack()
	s.Send(0x01, byte(id>>8), byte(id))
	s.Ack()
	return boot.Done
}
