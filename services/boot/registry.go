package boot

import (
	"fmt"

	"stm32boot-go/protocol"
	"stm32boot-go/x/mathx"
)

// Status is what a command step reports back to the engine.
type Status uint8

const (
	Continue Status = iota
	Done
)

// Descriptor is the immutable part of a command.
type Descriptor struct {
	Opcode byte
	Name   string
	// ExtraFrameBytes is the largest frame, beyond the opcode and excluding
	// the checksum, the command will ask for with Session.Expect.
	ExtraFrameBytes int
}

// FrameSize is the largest frame the command can make the engine wait for.
func (d Descriptor) FrameSize() int {
	return mathx.Max(protocol.CommandFrameSize, d.ExtraFrameBytes+protocol.ChecksumSize)
}

// Command is one resumable bootloader command.
//
// The engine calls Reset when the command is selected, then Step once with
// the selecting frame and once per frame the command requested with
// Session.Expect, until Step returns Done. A step that does not call Expect
// gets another frame of the same size.
type Command interface {
	Descriptor() Descriptor
	Reset()
	Step(s *Session) Status
}

// Registry is the fixed opcode table. It is filled before the session starts
// and read-only afterwards.
type Registry struct {
	table [256]Command
	order []byte
}

func NewRegistry(cmds ...Command) *Registry {
	r := &Registry{}
	for _, c := range cmds {
		r.Register(c)
	}
	return r
}

// Register panics on a nil command or a duplicate opcode.
func (r *Registry) Register(c Command) {
	if c == nil {
		panic("boot: nil command")
	}
	op := c.Descriptor().Opcode
	if r.table[op] != nil {
		panic(fmt.Sprintf("boot: command already registered for opcode 0x%02X", op))
	}
	r.table[op] = c
	r.order = append(r.order, op)
}

func (r *Registry) Lookup(op byte) (Command, bool) {
	c := r.table[op]
	return c, c != nil
}

// Opcodes lists registered opcodes in registration order.
func (r *Registry) Opcodes() []byte {
	return append([]byte(nil), r.order...)
}

// MaxFrame is the largest frame any registered command can request.
func (r *Registry) MaxFrame() int {
	n := protocol.CommandFrameSize
	for _, op := range r.order {
		n = mathx.Max(n, r.table[op].Descriptor().FrameSize())
	}
	return n
}
