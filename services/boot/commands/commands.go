// Package commands implements the AN3155 command bodies as resumable steps
// driven by the boot engine.
//
// Command-level faults (bad address, bad sub-frame checksum, flash errors)
// are answered with NACK and end the command; the session carries on.
package commands

import (
	"stm32boot-go/services/boot"
)

// Standard returns the supported command set. base is the STM32 address of
// the first byte of the flash capability.
func Standard(base uint32) []boot.Command {
	return []boot.Command{
		&Get{},
		&GetVersion{},
		&GetID{},
		&ReadMemory{base: base},
		&WriteMemory{base: base},
		&Erase{},
		&ExtendedErase{},
	}
}

// flashOffset maps [addr, addr+n) onto a flash offset.
func flashOffset(s *boot.Session, base, addr uint32, n int) (int64, bool) {
	if addr < base {
		return 0, false
	}
	off := int64(addr - base)
	if off+int64(n) > s.Flash().Size() {
		return 0, false
	}
	return off, true
}

func blockCount(s *boot.Session) int64 {
	f := s.Flash()
	return f.Size() / f.EraseBlockSize()
}

// eraseRange erases blocks one at a time, feeding the watchdog in between.
func eraseRange(s *boot.Session, start, n int64) error {
	for i := start; i < start+n; i++ {
		if err := s.Flash().EraseBlocks(i, 1); err != nil {
			return err
		}
		s.FeedWatchdog()
	}
	return nil
}
