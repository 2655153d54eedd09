package codegen

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Arch is a machine architecture a backend can assemble for
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86_64
	ArchARM64
)

// String returns the GCC name, like "x86_64" or "aarch64"
func (a Arch) String() string {
	switch a {
	case ArchX86_64:
		return "x86_64"
	case ArchARM64:
		return "aarch64"
	default:
		return "unknown"
	}
}

// GoArch returns the GOARCH spelling, like "amd64" or "arm64"
func (a Arch) GoArch() string {
	switch a {
	case ArchX86_64:
		return "amd64"
	case ArchARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// ErrUnsupportedArch is returned for architectures without a backend
var ErrUnsupportedArch = errors.New("unsupported architecture")

// ParseArch accepts both the GOARCH and the GCC spelling
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "amd64", "x86_64", "x86-64", "x64":
		return ArchX86_64, nil
	case "arm64", "aarch64":
		return ArchARM64, nil
	}
	return ArchUnknown, errors.Wrapf(ErrUnsupportedArch, "%q", s)
}

// HostArch returns the architecture of the running process
func HostArch() (Arch, error) {
	switch runtime.GOARCH {
	case "amd64":
		return ArchX86_64, nil
	case "arm64":
		return ArchARM64, nil
	}
	return ArchUnknown, errors.Wrap(ErrUnsupportedArch, runtime.GOARCH)
}
