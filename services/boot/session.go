package boot

import (
	"stm32boot-go/protocol"
	"stm32boot-go/services/boot/halcore"
	"stm32boot-go/x/conv"
)

// Session is the view of the engine a command step works through. It is
// only valid inside Step.
type Session struct {
	e *Engine
}

// Frame returns the bytes delivered for this step. The slice is reused by
// the next frame.
func (s *Session) Frame() []byte { return s.e.frame }

// Expect sets the size of the next frame. Sizes outside
// [1, largest registered frame] are programming errors and panic.
func (s *Session) Expect(n int) {
	if n < 1 || n > len(s.e.staging) {
		panic("boot: frame size " + conv.Dec(uint64(n)) + " exceeds staging area")
	}
	s.e.expected = n
}

// Send transmits bytes to the host in order.
func (s *Session) Send(b ...byte) {
	s.e.send(b...)
}

func (s *Session) Ack()  { s.e.send(protocol.ByteACK) }
func (s *Session) Nack() { s.e.send(protocol.ByteNACK) }

func (s *Session) Flash() halcore.Flash { return s.e.hw.Flash }

func (s *Session) FeedWatchdog() { s.e.hw.Watchdog.Feed() }

func (s *Session) ChipID() uint16 { return s.e.cfg.ChipID }

func (s *Session) Version() byte { return s.e.cfg.Version }

// Opcodes lists the commands the bootloader supports, for Get.
func (s *Session) Opcodes() []byte { return s.e.reg.Opcodes() }

// Log writes a diagnostic line when logging is enabled.
func (s *Session) Log(parts ...string) { s.e.log(parts...) }
