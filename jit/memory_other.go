//go:build !linux

package jit

import (
	"runtime"

	"github.com/pkg/errors"
)

type codePage struct{}

func allocCodePage(code []byte) (*codePage, error) {
	return nil, errors.Wrapf(errUnsupportedOS, "executable memory on %s", runtime.GOOS)
}

func (p *codePage) addr() uintptr {
	return 0
}

func (p *codePage) size() int {
	return 0
}

func (p *codePage) free() error {
	return nil
}
