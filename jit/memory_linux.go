//go:build linux

package jit

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// codePage is an executable mapping holding one function. It is mapped
// read-write, filled, then flipped to read-execute, so it is never
// writable and executable at the same time.
type codePage struct {
	mem []byte
}

// allocCodePage maps code into fresh executable memory. On arm64 the
// kernel keeps the instruction cache coherent when the page becomes
// executable through mprotect.
func allocCodePage(code []byte) (*codePage, error) {
	if len(code) == 0 {
		return nil, errors.New("no code to map")
	}
	pageSize := unix.Getpagesize()
	allocSize := ((len(code) + pageSize - 1) / pageSize) * pageSize

	mem, err := unix.Mmap(-1, 0, allocSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "mmap")
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, errors.Wrap(err, "mprotect")
	}
	return &codePage{mem: mem}, nil
}

// addr returns the address of the first byte of code
func (p *codePage) addr() uintptr {
	return uintptr(unsafe.Pointer(&p.mem[0]))
}

// size returns the mapped size, a whole number of pages
func (p *codePage) size() int {
	return len(p.mem)
}

func (p *codePage) free() error {
	if p.mem == nil {
		return nil
	}
	err := unix.Munmap(p.mem)
	p.mem = nil
	return errors.Wrap(err, "munmap")
}
