package protocol

// CommandFrame returns [op, ^op].
func CommandFrame(op byte) []byte { return []byte{op, ^op} }

// AddressFrame returns the big-endian address followed by its XOR.
func AddressFrame(addr uint32) []byte {
	f := []byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)}
	return append(f, XOR(0, f...))
}

// DataFrame appends the XOR of data to a copy of data.
func DataFrame(data ...byte) []byte {
	f := make([]byte, 0, len(data)+ChecksumSize)
	f = append(f, data...)
	return append(f, XOR(0, data...))
}

// Address decodes the four leading big-endian bytes of an address frame.
func Address(f []byte) uint32 {
	_ = f[3]
	return uint32(f[0])<<24 | uint32(f[1])<<16 | uint32(f[2])<<8 | uint32(f[3])
}
