package protocol

// XOR folds data into a single byte starting from seed.
func XOR(seed byte, data ...byte) byte {
	for _, b := range data {
		seed ^= b
	}
	return seed
}

// Validate checks a complement-framed frame: the XOR of every byte except
// the last, complemented, must equal the last byte. Frames shorter than two
// bytes never validate.
func Validate(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	n := len(frame) - 1
	return ^XOR(0, frame[:n]...) == frame[n]
}

// ValidateXOR checks a data frame whose last byte is the plain XOR of the
// bytes before it. A one-byte frame is its own (zero) checksum only if 0.
func ValidateXOR(frame []byte) bool {
	if len(frame) == 0 {
		return false
	}
	return XOR(0, frame...) == 0
}
