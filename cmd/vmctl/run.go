package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/vmcore/pkg/types"
	"github.com/joshuapare/vmcore/vm"
	"github.com/joshuapare/vmcore/vm/addrspace"
)

const (
	codeBase = types.Vaddr(0x00400000)
	dataBase = types.Vaddr(0x10000000)
)

var (
	runCodePages int
	runDataPages int
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVar(&runCodePages, "code-pages", 3, "Pages in the code region")
	cmd.Flags().IntVar(&runDataPages, "data-pages", 2, "Pages in the data region")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load, fork and run a simulated program",
		Long: `The run command walks one program through its life: it defines a code
and a data region, prepares and fills them, completes the load, forks a
child, touches every page of the child through the fault handler, checks
that the code cannot be written, and destroys both address spaces.

Example:
  vmctl run
  vmctl run --code-pages 8 --data-pages 4 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram()
		},
	}
}

// process is a user process as far as the memory system is concerned.
type process struct {
	pid int
	as  *addrspace.AddressSpace
}

func (p *process) AddrSpace() *addrspace.AddressSpace { return p.as }

// RunReport summarizes a program run.
type RunReport struct {
	Pages          int      `json:"pages"`
	StackPointer   string   `json:"stack_pointer"`
	PagesTouched   int      `json:"pages_touched"`
	CodeWriteError string   `json:"code_write_error"`
	FramesLeaked   int      `json:"frames_leaked"`
	Stats          vm.Stats `json:"stats"`
}

func runProgram() error {
	if runCodePages < 1 || runDataPages < 1 {
		return fmt.Errorf("--code-pages and --data-pages must be at least 1")
	}

	v, err := bootMachine()
	if err != nil {
		return err
	}
	defer v.Close()

	startFree := v.Stats().Coremap.Free
	report := RunReport{}

	parent := &process{pid: 1, as: v.NewAddrSpace()}
	sp, err := loadProgram(parent.as)
	if err != nil {
		parent.as.Destroy()
		return fmt.Errorf("load: %w", err)
	}
	report.Pages = parent.as.PageCount()
	report.StackPointer = sp.String()
	v.SetCurrent(parent)
	printVerbose("Loaded pid %d: %d pages, sp %s\n", parent.pid, report.Pages, sp)

	childAS, err := parent.as.Copy()
	if err != nil {
		parent.as.Destroy()
		return fmt.Errorf("fork: %w", err)
	}
	child := &process{pid: 2, as: childAS}
	v.SetCurrent(child)
	printVerbose("Forked pid %d\n", child.pid)

	touched, runErr := touchAll(v, child)
	report.PagesTouched = touched

	if runErr == nil {
		_, err := v.Access(codeBase, true)
		switch {
		case errors.Is(err, vm.ErrReadOnly):
			report.CodeWriteError = err.Error()
		case err == nil:
			runErr = fmt.Errorf("write to code at %s succeeded", codeBase)
		default:
			runErr = err
		}
	}

	v.SetCurrent(nil)
	child.as.Destroy()
	parent.as.Destroy()
	report.FramesLeaked = startFree - v.Stats().Coremap.Free
	report.Stats = v.Stats()

	if runErr != nil {
		return runErr
	}
	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printRun(report)
	}
	if report.FramesLeaked != 0 {
		return fmt.Errorf("%d frames leaked", report.FramesLeaked)
	}
	return nil
}

// loadProgram defines the regions, fills every page with a pattern naming
// its address, and completes the load.
func loadProgram(as *addrspace.AddressSpace) (types.Vaddr, error) {
	if err := as.DefineRegion(codeBase, runCodePages*types.PageSize, true, false, true); err != nil {
		return 0, err
	}
	if err := as.DefineRegion(dataBase, runDataPages*types.PageSize, true, true, false); err != nil {
		return 0, err
	}
	if err := as.PrepareLoad(); err != nil {
		return 0, err
	}
	for _, r := range as.Regions() {
		for i := range r.NPages {
			va := r.VBase + types.Vaddr(i*types.PageSize)
			if err := as.CopyOut(va, pagePattern(va)); err != nil {
				return 0, err
			}
		}
	}
	if err := as.CompleteLoad(); err != nil {
		return 0, err
	}
	return as.DefineStack()
}

func pagePattern(va types.Vaddr) []byte {
	return []byte("page " + va.String())
}

// touchAll reads every page of p through the MMU, writes every writable
// one, and checks that each loaded page still carries its pattern.
func touchAll(v *vm.VM, p *process) (int, error) {
	touched := 0
	regions := append(p.as.Regions(), p.as.Stack())
	for ri, r := range regions {
		loaded := ri < len(regions)-1
		for i := range r.NPages {
			va := r.VBase + types.Vaddr(i*types.PageSize)
			pa, err := v.Access(va, false)
			if err != nil {
				return touched, fmt.Errorf("read %s: %w", va, err)
			}
			if loaded {
				want := pagePattern(va)
				got := v.PageBytes(pa.Page())[:len(want)]
				if string(got) != string(want) {
					return touched, fmt.Errorf("page %s holds %q, want %q", va, got, want)
				}
			}
			if r.Perm&addrspace.PermWrite != 0 {
				if _, err := v.Access(va, true); err != nil {
					return touched, fmt.Errorf("write %s: %w", va, err)
				}
			}
			touched++
		}
	}
	return touched, nil
}

func printRun(r RunReport) {
	s := r.Stats
	printInfo("\nProgram Run\n")
	printInfo("%s\n", strings.Repeat("=", 40))
	printInfo("  Pages per process:  %d\n", r.Pages)
	printInfo("  Stack pointer:      %s\n", r.StackPointer)
	printInfo("  Pages touched:      %d\n", r.PagesTouched)
	printInfo("  Write to code:      %s\n", r.CodeWriteError)
	printInfo("  Frames leaked:      %d\n\n", r.FramesLeaked)

	printInfo("Faults\n")
	printInfo("%s\n", strings.Repeat("=", 40))
	printInfo("  Read:               %s\n", formatNumber(int64(s.FaultsRead)))
	printInfo("  Write:              %s\n", formatNumber(int64(s.FaultsWrite)))
	printInfo("  Read-only:          %s\n", formatNumber(int64(s.FaultsReadOnly)))
	printInfo("  Bad address:        %s\n\n", formatNumber(int64(s.FaultsBad)))

	printInfo("TLB\n")
	printInfo("%s\n", strings.Repeat("=", 40))
	printInfo("  Fills:              %s\n", formatNumber(int64(s.TLBFills)))
	printInfo("  Evictions:          %s\n", formatNumber(int64(s.TLBEvictions)))
	printInfo("  Flushes:            %s\n", formatNumber(int64(s.TLBFlushes)))
}
