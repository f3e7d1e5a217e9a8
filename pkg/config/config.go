// Package config describes the simulated machine the memory core runs on:
// how much RAM is installed, how much of it the kernel image occupies, the
// translation cache size, and the per-process layout limits.
//
// Machine files are JSON or YAML, chosen by extension. Fields left out of a
// file keep their defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/vmcore/pkg/types"
)

// Machine is the configuration of one simulated machine.
type Machine struct {
	RAMSize        int    `json:"ram_size" yaml:"ram_size"`               // Installed memory in bytes
	KernelReserved int    `json:"kernel_reserved" yaml:"kernel_reserved"` // Bytes below the first free address
	NumTLB         int    `json:"num_tlb" yaml:"num_tlb"`                 // Translation cache slots
	StackPages     int    `json:"stack_pages" yaml:"stack_pages"`         // Pages per user stack
	MaxRegions     int    `json:"max_regions" yaml:"max_regions"`         // Non-stack regions per address space
	NumCPUs        int    `json:"num_cpus" yaml:"num_cpus"`               // Must be 1
	Seed           uint64 `json:"seed" yaml:"seed"`                       // TLB replacement randomness
	LogLevel       string `json:"log_level" yaml:"log_level"`
}

// Default returns the machine the kernel was built around.
func Default() Machine {
	return Machine{
		RAMSize:        types.DefaultRAMSize,
		KernelReserved: types.DefaultKernelReserved,
		NumTLB:         types.DefaultNumTLB,
		StackPages:     types.DefaultStackPages,
		MaxRegions:     types.DefaultMaxRegions,
		NumCPUs:        1,
		Seed:           1,
		LogLevel:       "info",
	}
}

// Load reads a machine file over the defaults and validates the result.
func Load(path string) (Machine, error) {
	m := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Machine{}, fmt.Errorf("config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		return Machine{}, fmt.Errorf("%w: %q", ErrFormat, ext)
	}
	if err != nil {
		return Machine{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return Machine{}, err
	}
	return m, nil
}

// Validate checks that the machine can boot.
func (m Machine) Validate() error {
	switch {
	case m.RAMSize < 4*types.PageSize:
		return fmt.Errorf("%w: ram_size %d is below 4 pages", ErrInvalid, m.RAMSize)
	case m.RAMSize > types.KSeg0Size:
		return fmt.Errorf("%w: ram_size %d exceeds the 512MB reachable through KSEG0", ErrInvalid, m.RAMSize)
	case m.KernelReserved < 0 || m.KernelReserved >= m.RAMSize:
		return fmt.Errorf("%w: kernel_reserved %d must be in [0, ram_size)", ErrInvalid, m.KernelReserved)
	case m.NumTLB < 1:
		return fmt.Errorf("%w: num_tlb must be at least 1", ErrInvalid)
	case m.StackPages < 1:
		return fmt.Errorf("%w: stack_pages must be at least 1", ErrInvalid)
	case m.MaxRegions < 1:
		return fmt.Errorf("%w: max_regions must be at least 1", ErrInvalid)
	case m.NumCPUs != 1:
		return fmt.Errorf("%w: num_cpus is %d", ErrMultiprocessor, m.NumCPUs)
	}
	return nil
}
