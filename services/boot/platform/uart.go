package platform

import (
	"tinygo.org/x/drivers"

	"stm32boot-go/services/boot/halcore"
)

// UARTSender adapts a drivers.UART to the engine's send-byte capability.
type UARTSender struct {
	u   drivers.UART
	one [1]byte
}

func NewUARTSender(u drivers.UART) *UARTSender { return &UARTSender{u: u} }

func (s *UARTSender) WriteByte(b byte) error {
	s.one[0] = b
	_, err := s.u.Write(s.one[:])
	return err
}

// Ensure compile-time conformance.
var _ halcore.Sender = (*UARTSender)(nil)
