package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/vmcore/pkg/types"
)

func init() {
	rootCmd.AddCommand(newBootCmd())
}

func newBootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boot",
		Short: "Boot a machine and show its memory layout",
		Long: `The boot command brings up a machine, hands the memory left after the
kernel image to the frame allocator and prints the resulting layout.

Example:
  vmctl boot
  vmctl boot --config machine.yaml
  vmctl boot --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoot()
		},
	}
}

// BootReport is the memory layout right after bootstrap.
type BootReport struct {
	RAMSize        int         `json:"ram_size"`
	KernelReserved int         `json:"kernel_reserved"`
	Base           types.Paddr `json:"base"`
	Top            types.Paddr `json:"top"`
	Frames         int         `json:"frames"`
	TableFrames    int         `json:"table_frames"`
	FreeFrames     int         `json:"free_frames"`
	TLBSlots       int         `json:"tlb_slots"`
	StackPages     int         `json:"stack_pages"`
	MaxRegions     int         `json:"max_regions"`
}

func runBoot() error {
	v, err := bootMachine()
	if err != nil {
		return err
	}
	defer v.Close()

	m := v.Config()
	cm := v.Stats().Coremap
	report := BootReport{
		RAMSize:        m.RAMSize,
		KernelReserved: m.KernelReserved,
		Base:           cm.Base,
		Top:            cm.Base + types.Paddr(cm.Frames*types.PageSize),
		Frames:         cm.Frames,
		TableFrames:    cm.Reserved,
		FreeFrames:     cm.Free,
		TLBSlots:       m.NumTLB,
		StackPages:     m.StackPages,
		MaxRegions:     m.MaxRegions,
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("\nMachine\n")
	printInfo("%s\n", strings.Repeat("=", 40))
	printInfo("  RAM:           %s (%s bytes)\n", formatBytes(int64(report.RAMSize)), formatNumber(int64(report.RAMSize)))
	printInfo("  Kernel image:  %s\n", formatBytes(int64(report.KernelReserved)))
	printInfo("  TLB slots:     %d\n", report.TLBSlots)
	printInfo("  Stack pages:   %d\n", report.StackPages)
	printInfo("  Max regions:   %d\n\n", report.MaxRegions)

	printInfo("Coremap\n")
	printInfo("%s\n", strings.Repeat("=", 40))
	printInfo("  Range:         %s - %s\n", report.Base, report.Top)
	printInfo("  Frames:        %s\n", formatNumber(int64(report.Frames)))
	printInfo("  Table frames:  %s\n", formatNumber(int64(report.TableFrames)))
	printInfo("  Free frames:   %s (%s)\n", formatNumber(int64(report.FreeFrames)),
		formatBytes(int64(report.FreeFrames)*types.PageSize))
	return nil
}
