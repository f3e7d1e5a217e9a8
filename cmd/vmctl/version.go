package main

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/joshuapare/vmcore/pkg/types"
)

// Set at link time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func init() {
	rootCmd.Version = buildVersion()
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion()
		},
	}
}

// VersionInfo describes the build and the machine it simulates.
type VersionInfo struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Built    string `json:"built"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
	PageSize int    `json:"page_size"`
	Machine  string `json:"machine"`
}

// buildVersion prefers the link-time version, then the module version
// recorded by go install.
func buildVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

func runVersion() error {
	info := VersionInfo{
		Version:  buildVersion(),
		Commit:   commit,
		Built:    date,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		PageSize: types.PageSize,
		Machine:  "uniprocessor MIPS, software-loaded TLB",
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("vmctl %s\n", info.Version)
	printInfo("  commit: %s\n", info.Commit)
	printInfo("  built: %s\n", info.Built)
	printInfo("  go: %s (%s)\n", info.Go, info.Platform)
	printVerbose("  machine: %s, %d-byte pages\n", info.Machine, info.PageSize)
	return nil
}
