package codegen

import (
	"github.com/pkg/errors"
)

// Register definitions for the supported architectures

type Register struct {
	Name     string
	Size     int   // Size in bits
	Encoding uint8 // Encoding for instruction generation
}

// x86_64 registers
var x86_64Registers = map[string]Register{
	// 64-bit general purpose registers
	"rax": {Name: "rax", Size: 64, Encoding: 0},
	"rcx": {Name: "rcx", Size: 64, Encoding: 1},
	"rdx": {Name: "rdx", Size: 64, Encoding: 2},
	"rbx": {Name: "rbx", Size: 64, Encoding: 3},
	"rsp": {Name: "rsp", Size: 64, Encoding: 4},
	"rbp": {Name: "rbp", Size: 64, Encoding: 5},
	"rsi": {Name: "rsi", Size: 64, Encoding: 6},
	"rdi": {Name: "rdi", Size: 64, Encoding: 7},

	// 32-bit registers
	"eax": {Name: "eax", Size: 32, Encoding: 0},
	"ecx": {Name: "ecx", Size: 32, Encoding: 1},
	"edx": {Name: "edx", Size: 32, Encoding: 2},
	"ebx": {Name: "ebx", Size: 32, Encoding: 3},
	"esi": {Name: "esi", Size: 32, Encoding: 6},
	"edi": {Name: "edi", Size: 32, Encoding: 7},

	// 8-bit
	"al": {Name: "al", Size: 8, Encoding: 0},
}

// ARM64 registers
var arm64Registers = map[string]Register{
	"x16": {Name: "x16", Size: 64, Encoding: 16}, // IP0, call scratch
	"x29": {Name: "x29", Size: 64, Encoding: 29}, // Frame pointer
	"x30": {Name: "x30", Size: 64, Encoding: 30}, // Link register
	"sp":  {Name: "sp", Size: 64, Encoding: 31},  // Stack pointer

	// 32-bit registers
	"w0":  {Name: "w0", Size: 32, Encoding: 0},
	"w1":  {Name: "w1", Size: 32, Encoding: 1},
	"w2":  {Name: "w2", Size: 32, Encoding: 2},
	"w3":  {Name: "w3", Size: 32, Encoding: 3},
	"w9":  {Name: "w9", Size: 32, Encoding: 9},
	"w10": {Name: "w10", Size: 32, Encoding: 10},
	"wzr": {Name: "wzr", Size: 32, Encoding: 31},
}

// Argument registers of the C calling convention, in parameter order
var (
	x86_64ArgRegs = []string{"edi", "esi", "edx", "ecx"}
	arm64ArgRegs  = []string{"w0", "w1", "w2", "w3"}
)

// GetRegister looks up a register by name for the given architecture
func GetRegister(arch Arch, name string) (Register, error) {
	var table map[string]Register
	switch arch {
	case ArchX86_64:
		table = x86_64Registers
	case ArchARM64:
		table = arm64Registers
	default:
		return Register{}, errors.Wrap(ErrUnsupportedArch, arch.String())
	}
	reg, ok := table[name]
	if !ok {
		return Register{}, errors.Errorf("invalid %s register: %s", arch, name)
	}
	return reg, nil
}

// IsValidRegister reports whether name is a register of arch
func IsValidRegister(arch Arch, name string) bool {
	_, err := GetRegister(arch, name)
	return err == nil
}
