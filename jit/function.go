package jit

import (
	"runtime"
	"sync"

	"github.com/xyproto/exprjit/internal/logging"
)

// CompiledFunction is native code taking four i32 and returning one.
// Call is safe for concurrent use. Close waits for calls in flight and
// releases the code; a finalizer does the same for a handle that is
// dropped without Close.
type CompiledFunction struct {
	mu     sync.RWMutex
	page   *codePage
	entry  uintptr
	size   int
	closed bool
}

func newCompiledFunction(page *codePage, codeSize int) *CompiledFunction {
	f := &CompiledFunction{page: page, entry: page.addr(), size: codeSize}
	runtime.SetFinalizer(f, (*CompiledFunction).finalize)
	return f
}

// Call runs the function. After Close it returns ErrClosed.
func (f *CompiledFunction) Call(a, b, c, d int32) (int32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return 0, ErrClosed
	}
	return callNative(f.entry, a, b, c, d), nil
}

// Entry returns the address of the first instruction, or 0 after Close
func (f *CompiledFunction) Entry() uintptr {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return 0
	}
	return f.entry
}

// Size returns the number of bytes of machine code
func (f *CompiledFunction) Size() int {
	return f.size
}

// Close releases the executable memory. Closing twice is a no-op.
func (f *CompiledFunction) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	runtime.SetFinalizer(f, nil)
	err := f.page.free()
	f.page = nil
	return err
}

func (f *CompiledFunction) finalize() {
	if err := f.Close(); err != nil {
		logging.L().Warningf("releasing unreachable compiled function: %v", err)
	}
}
