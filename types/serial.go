package types

// ------------------------
// Serial
// ------------------------

type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

// ParseParity maps "none" | "even" | "odd" onto a Parity; unknown strings
// yield ParityNone and false.
func ParseParity(s string) (Parity, bool) {
	switch s {
	case "none", "":
		return ParityNone, true
	case "even":
		return ParityEven, true
	case "odd":
		return ParityOdd, true
	}
	return ParityNone, false
}

// SerialFormat is the line setting a bootloader port runs at.
// AN3155 hosts expect 8 data bits, even parity, one stop bit.
type SerialFormat struct {
	Baud     uint32 `json:"baud"`
	DataBits uint8  `json:"data_bits"`
	StopBits uint8  `json:"stop_bits"`
	Parity   Parity `json:"parity"`
}

// BootSerialFormat is the default AN3155 line setting.
var BootSerialFormat = SerialFormat{Baud: 115200, DataBits: 8, StopBits: 1, Parity: ParityEven}
