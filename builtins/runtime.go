// Package builtins implements the functions compiled code can call by name:
// print and rand. Native code reaches them through the process-wide
// default Runtime.
package builtins

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"

	"github.com/xyproto/exprjit/internal/logging"
)

// Runtime is the output channel and random source of the built-ins.
// It is safe for concurrent use.
type Runtime struct {
	mu  sync.Mutex
	out io.Writer
	rng *rand.Rand
}

// New returns a runtime writing to out with a randomly seeded source
func New(out io.Writer) *Runtime {
	return &Runtime{out: out, rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeeded returns a runtime whose rand results repeat for the same seed
func NewSeeded(out io.Writer, seed uint64) *Runtime {
	return &Runtime{out: out, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Print writes v on its own line and returns it
func (r *Runtime) Print(v int32) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := fmt.Fprintf(r.out, "%d\n", v); err != nil {
		logging.L().Warningf("print(%d): %v", v, err)
	}
	return v
}

// Rand returns a uniform value in [0, v) and records the draw. For v <= 0
// there is no such value, so it returns 0.
func (r *Runtime) Rand(v int32) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result int32
	if v > 0 {
		result = r.rng.Int32N(v)
	} else {
		logging.L().Warningf("rand(%d): bound must be positive, returning 0", v)
	}
	if _, err := fmt.Fprintf(r.out, "Rand(%d) = %d\n", v, result); err != nil {
		logging.L().Warningf("rand(%d): %v", v, err)
	}
	return result
}

var defaultRuntime atomic.Pointer[Runtime]

func init() {
	defaultRuntime.Store(New(os.Stdout))
}

// Default returns the runtime native code dispatches to
func Default() *Runtime {
	return defaultRuntime.Load()
}

// SetDefault replaces the runtime native code dispatches to and returns the
// previous one
func SetDefault(r *Runtime) *Runtime {
	return defaultRuntime.Swap(r)
}

// Print calls Print on the default runtime
func Print(v int32) int32 {
	return Default().Print(v)
}

// Rand calls Rand on the default runtime
func Rand(v int32) int32 {
	return Default().Rand(v)
}
