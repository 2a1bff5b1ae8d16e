package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lumen-lang/lumen/internal/lir"
)

// Set via -ldflags at release time.
var (
	Version = "dev"
	Commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the lumen version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lumen %s (%s)\n", color.CyanString(Version), Commit)
		fmt.Printf("LIR format version %d\n", lir.CurrentVersion)
	},
}
