package halcore

import (
	"sync"

	"stm32boot-go/x/mathx"
)

// ErasedByte is the value of an erased flash cell.
const ErasedByte = 0xFF

// MemFlash is a RAM-backed Flash with NOR semantics: programming can only
// clear bits, erase sets a whole block back to ErasedByte.
type MemFlash struct {
	mu    sync.Mutex
	data  []byte
	block int64

	writes int
	erases int
}

// NewMemFlash rounds size up to whole blocks and returns an erased device.
func NewMemFlash(size, blockSize int) *MemFlash {
	if blockSize <= 0 {
		panic("memflash: block size must be positive")
	}
	blocks := mathx.CeilDiv(uint32(size), uint32(blockSize))
	f := &MemFlash{
		data:  make([]byte, int(blocks)*blockSize),
		block: int64(blockSize),
	}
	for i := range f.data {
		f.data[i] = ErasedByte
	}
	return f
}

func (f *MemFlash) Size() int64           { return int64(len(f.data)) }
func (f *MemFlash) EraseBlockSize() int64 { return f.block }

func (f *MemFlash) span(off int64, n int) bool {
	return off >= 0 && n >= 0 && off+int64(n) <= int64(len(f.data))
}

func (f *MemFlash) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.span(off, len(p)) {
		return 0, ErrOutOfRange
	}
	return copy(p, f.data[off:]), nil
}

func (f *MemFlash) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.span(off, len(p)) {
		return 0, ErrOutOfRange
	}
	for i, b := range p {
		f.data[off+int64(i)] &= b
	}
	f.writes++
	return len(p), nil
}

// EraseBlocks erases n blocks starting at block index start.
func (f *MemFlash) EraseBlocks(start, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if start < 0 || n < 0 || (start+n)*f.block > int64(len(f.data)) {
		return ErrOutOfRange
	}
	lo, hi := start*f.block, (start+n)*f.block
	for i := lo; i < hi; i++ {
		f.data[i] = ErasedByte
	}
	f.erases += int(n)
	return nil
}

// Load replaces the contents with img; img must fit.
func (f *MemFlash) Load(img []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(img) > len(f.data) {
		return ErrOutOfRange
	}
	copy(f.data, img)
	for i := len(img); i < len(f.data); i++ {
		f.data[i] = ErasedByte
	}
	return nil
}

// Bytes returns a copy of the whole array.
func (f *MemFlash) Bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.data...)
}

// Stats reports the number of WriteAt calls and erased blocks.
func (f *MemFlash) Stats() (writes, erases int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes, f.erases
}
