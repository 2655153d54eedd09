//go:build !((linux || darwin) && (amd64 || arm64))

package jit

import (
	"runtime"

	"github.com/pkg/errors"
)

func nativeSymbols() (map[string]uintptr, error) {
	return nil, errors.Wrapf(errUnsupportedOS, "native calls on %s/%s", runtime.GOOS, runtime.GOARCH)
}

func callNative(entry uintptr, a, b, c, d int32) int32 {
	panic("jit: native calls are not supported on " + runtime.GOOS + "/" + runtime.GOARCH)
}
