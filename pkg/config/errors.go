package config

import (
	"errors"
	"fmt"

	"github.com/joshuapare/vmcore/pkg/types"
)

var (
	// ErrInvalid indicates a machine description that cannot boot.
	ErrInvalid = fmt.Errorf("config: invalid machine: %w", types.EINVAL)

	// ErrMultiprocessor indicates more than one CPU was requested. TLB
	// consistency relies on disabling interrupts, which only covers one CPU.
	ErrMultiprocessor = fmt.Errorf("config: only uniprocessor machines are supported: %w", types.EUNIMP)

	// ErrFormat indicates a machine file with an unrecognized extension.
	ErrFormat = errors.New("config: unsupported file format")
)
