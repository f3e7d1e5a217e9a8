package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/joshuapare/vmcore/pkg/types"
	"github.com/joshuapare/vmcore/vm/coremap"
)

var (
	mapSteps    int
	mapMaxPages int
	mapWidth    int
)

func init() {
	cmd := newMapCmd()
	cmd.Flags().IntVar(&mapSteps, "steps", 0, "Random allocate/free operations to run before drawing")
	cmd.Flags().IntVar(&mapMaxPages, "max-pages", 8, "Largest run the workload allocates")
	cmd.Flags().IntVar(&mapWidth, "width", 64, "Frames per row")
	rootCmd.AddCommand(cmd)
}

func newMapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map",
		Short: "Draw the frame table",
		Long: `The map command draws one cell per tracked frame: T for the frames
holding the table itself, # for the first frame of an allocated run, = for the
rest of a run and . for a free frame.

Example:
  vmctl map
  vmctl map --steps 500 --width 32
  vmctl map --steps 500 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap()
		},
	}
}

// MapRun is one allocated run in the frame table.
type MapRun struct {
	Frame  int         `json:"frame"`
	Paddr  types.Paddr `json:"paddr"`
	Length int         `json:"length"`
}

// MapReport is the frame table after the workload.
type MapReport struct {
	Stats coremap.Stats `json:"stats"`
	Runs  []MapRun      `json:"runs"`
}

func runMap() error {
	if mapWidth < 1 || mapMaxPages < 1 || mapSteps < 0 {
		return fmt.Errorf("--width and --max-pages must be at least 1, --steps at least 0")
	}

	v, err := bootMachine()
	if err != nil {
		return err
	}
	defer v.Close()

	w := newWorkload(v, v.Config().Seed, mapMaxPages, false)
	if err := w.run(mapSteps); err != nil {
		return err
	}

	stats := v.Stats().Coremap
	snap := v.Coremap().Snapshot()

	if jsonOut {
		report := MapReport{Stats: stats, Runs: []MapRun{}}
		for i, f := range snap {
			if i >= stats.Reserved && f.Position == 1 {
				report.Runs = append(report.Runs, MapRun{
					Frame:  i,
					Paddr:  stats.Base + types.Paddr(i*types.PageSize),
					Length: int(f.Length),
				})
			}
		}
		return printJSON(report)
	}

	if noColor {
		plainStyles()
	}
	printInfo("%s\n", renderMap(stats, snap, mapWidth))
	return nil
}

// renderMap lays the frame table out as a grid under a summary header.
func renderMap(stats coremap.Stats, snap []coremap.Frame, width int) string {
	var rows []string
	var row strings.Builder
	run := -1
	for i, f := range snap {
		var cell string
		switch {
		case i < stats.Reserved:
			cell = tableCellStyle.Render("T")
		case f.Position == 0:
			cell = freeCellStyle.Render(".")
		case f.Position == 1:
			run++
			cell = runCellStyles[run%2].Render("#")
		default:
			cell = runCellStyles[run%2].Render("=")
		}
		row.WriteString(cell)
		if (i+1)%width == 0 || i == len(snap)-1 {
			rows = append(rows, row.String())
			row.Reset()
		}
	}

	header := headerStyle.Render(fmt.Sprintf("Coremap %s - %s: %d frames, %d free, %d runs",
		stats.Base, stats.Base+types.Paddr(stats.Frames*types.PageSize),
		stats.Frames, stats.Free, stats.Runs))
	legend := legendStyle.Render("T table  # run start  = run  . free")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		gridStyle.Render(strings.Join(rows, "\n")),
		legend)
}
