//go:build (linux || darwin) && (amd64 || arm64)

package jit

import (
	"sync"

	"github.com/ebitengine/purego"
	"github.com/xyproto/exprjit/expr"
)

var (
	nativeOnce sync.Once
	nativeSyms map[string]uintptr
)

// nativeSymbols returns a C callable address per built-in symbol name.
// purego has a fixed number of callback slots, so the trampolines are
// made once per process and dispatch through builtins.Default.
func nativeSymbols() (map[string]uintptr, error) {
	nativeOnce.Do(func() {
		nativeSyms = make(map[string]uintptr, len(expr.Builtins))
		for _, b := range expr.Builtins {
			impl := builtinImpls[b]
			nativeSyms[builtinSignatures[b].Name] = purego.NewCallback(func(v uintptr) uintptr {
				return uintptr(uint32(impl(int32(v))))
			})
		}
	})
	return nativeSyms, nil
}

// callNative calls a (i32, i32, i32, i32) -> i32 function at entry
func callNative(entry uintptr, a, b, c, d int32) int32 {
	r, _, _ := purego.SyscallN(entry, uintptr(a), uintptr(b), uintptr(c), uintptr(d))
	return int32(r)
}
