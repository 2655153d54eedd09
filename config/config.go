// Package config collects the settings of exprjit from the environment.
// Command line flags are applied on top by the CLI.
package config

import (
	"github.com/pkg/errors"
	"github.com/xyproto/env/v2"
	"github.com/xyproto/exprjit/codegen"
)

// Environment variables
const (
	EnvVerbose = "EXPRJIT_VERBOSE"
	EnvSeed    = "EXPRJIT_SEED"
	EnvArch    = "EXPRJIT_ARCH"
	EnvNoColor = "EXPRJIT_NO_COLOR"
)

// Config holds the settings shared by the commands
type Config struct {
	// Verbose enables debug logging of tokens, IR and code sizes
	Verbose bool
	// Seed makes rand deterministic when HasSeed is set
	Seed    uint64
	HasSeed bool
	// Arch is the architecture dump assembles for
	Arch codegen.Arch
	// NoColor disables colored error output
	NoColor bool
}

// FromEnv reads the configuration. An unset EXPRJIT_ARCH means the host.
// The environment is read again on every call.
func FromEnv() (*Config, error) {
	env.Load()
	c := &Config{
		Verbose: env.Bool(EnvVerbose),
		NoColor: env.Bool(EnvNoColor),
	}
	if env.Has(EnvSeed) {
		seed := env.Int(EnvSeed, -1)
		if seed < 0 {
			return nil, errors.Errorf("%s must be a non-negative integer, got %q", EnvSeed, env.Str(EnvSeed))
		}
		c.SetSeed(uint64(seed))
	}
	archName := env.Str(EnvArch)
	if archName == "" {
		arch, err := codegen.HostArch()
		if err != nil {
			// No backend for the host. dump still works with an explicit arch.
			arch = codegen.ArchX86_64
		}
		c.Arch = arch
		return c, nil
	}
	arch, err := codegen.ParseArch(archName)
	if err != nil {
		return nil, errors.Wrap(err, EnvArch)
	}
	c.Arch = arch
	return c, nil
}

// SetSeed fixes the seed of rand
func (c *Config) SetSeed(seed uint64) {
	c.Seed = seed
	c.HasSeed = true
}
