// Package protocol holds the wire-level pieces of the STM32 USART bootloader
// protocol (ST application note AN3155) shared by the device-side engine and
// the host tools.
//
// # Framing
//
// Every exchange starts with the host sending INIT (0x7F); the device replies
// ACK (0x79). A command is then two bytes:
//
//	[OPCODE][^OPCODE]
//
// Address and data sub-frames carry a trailing XOR of their bytes:
//
//	[A3][A2][A1][A0][A3^A2^A1^A0]
//	[N][D0]..[DN][N^D0^..^DN]
//
// Single-value sub-frames (read length, Get/Go style selectors) reuse the
// complement form of the command frame.
package protocol
