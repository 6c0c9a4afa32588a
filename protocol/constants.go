package protocol

// Handshake and reply bytes.
const (
	// ByteInit is sent by the host to start a session.
	ByteInit = 0x7F

	// ByteQuit ends a session before the handshake without a reply.
	ByteQuit = 0x1B

	// ByteACK acknowledges a frame.
	ByteACK = 0x79

	// ByteNACK rejects a frame.
	ByteNACK = 0x1F
)

// ChecksumSize is the length of the trailing checksum on every frame.
const ChecksumSize = 1

// CommandFrameSize is opcode plus checksum.
const CommandFrameSize = 1 + ChecksumSize

// Version is the bootloader protocol version reported by Get and Get Version (3.1).
const Version = 0x31

// Command opcodes.
const (
	CmdGet           = 0x00
	CmdGetVersion    = 0x01
	CmdGetID         = 0x02
	CmdReadMemory    = 0x11
	CmdWriteMemory   = 0x31
	CmdErase         = 0x43
	CmdExtendedErase = 0x44
)

// Transfer limits.
const (
	// MaxTransfer is the largest Read/Write Memory payload (N+1 with N=0xFF).
	MaxTransfer = 256

	// AddressFrameSize is four address bytes plus XOR.
	AddressFrameSize = 4 + ChecksumSize
)

// Erase selectors.
const (
	EraseGlobal = 0xFF // Erase: N=0xFF, followed by 0x00

	ExtEraseMass  = 0xFFFF
	ExtEraseBank1 = 0xFFFE
	ExtEraseBank2 = 0xFFFD
)

// DefaultFlashBase is the STM32 main flash address.
const DefaultFlashBase = 0x08000000
