// Package facts captures the runtime facts a bisection run depends on: the
// platform the shell is built on and the build/runtime options in effect.
// A Facts value is captured once per run and passed by value; nothing in the
// resolver consults the environment behind its back.
package facts

import (
	"runtime"

	"go.skia.org/infra/go/util"
)

// Platform names follow the convention of the build system we bisect
// against, not Go's GOOS/GOARCH spellings.
const (
	Linux   = "Linux"
	Darwin  = "Darwin"
	Windows = "Windows"
)

// Options are the named build/runtime toggles that gate exclusion ranges.
type Options struct {
	// EnableDbg selects a debug build of the shell.
	EnableDbg bool
	// Enable32 selects a 32-bit build.
	Enable32 bool
	// EnableMoreDeterministic selects the more-deterministic build used by
	// differential testing.
	EnableMoreDeterministic bool
	// EnableSimulatorArm32 selects the 32-bit ARM simulator build.
	EnableSimulatorArm32 bool
	// Profiling builds the shell with profiler hooks.
	Profiling bool
}

// Facts is an immutable snapshot of the environment a run executes in.
type Facts struct {
	OS      string
	Arch    string
	flags   []string
	Options Options
}

// New returns a Facts value for the given platform, shell flags, and build
// options. The flags slice is copied.
func New(os, arch string, flags []string, options Options) Facts {
	return Facts{
		OS:      os,
		Arch:    arch,
		flags:   util.CopyStringSlice(flags),
		Options: options,
	}
}

// Current returns a Facts value for the platform this process runs on.
func Current(flags []string, options Options) Facts {
	return New(currentOS(), currentArch(), flags, options)
}

func currentOS() string {
	switch runtime.GOOS {
	case "linux":
		return Linux
	case "darwin":
		return Darwin
	case "windows":
		return Windows
	default:
		return runtime.GOOS
	}
}

func currentArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i386"
	default:
		return runtime.GOARCH
	}
}

// Flags returns a copy of the shell flags in effect.
func (f Facts) Flags() []string {
	return util.CopyStringSlice(f.flags)
}

// HasFlag returns true if exactly the given flag is present.
func (f Facts) HasFlag(flag string) bool {
	return util.In(flag, f.flags)
}

// HasAnyFlag returns true if any of the given flags is present.
func (f Facts) HasAnyFlag(flags ...string) bool {
	for _, flag := range flags {
		if util.In(flag, f.flags) {
			return true
		}
	}
	return false
}

// HasFlagPrefix returns true if any flag starts with the given prefix. Used
// for value-carrying flags such as "--cpu-count=8".
func (f Facts) HasFlagPrefix(prefix string) bool {
	for _, flag := range f.flags {
		if len(flag) >= len(prefix) && flag[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
