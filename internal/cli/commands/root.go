// Package commands wires the lumen CLI: a thin cobra shell over
// internal/compile and internal/vm, per spec.md §1's scope note that CLI
// plumbing stays outside the core. Structure mirrors the teacher's
// internal/cli/commands package: one file per subcommand, a root command
// holding shared flags, and Execute() called from cmd/lumen.
package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagVerbose bool
	flagStrict  bool
	flagDeps    []string
	flagStdlib  string
)

var rootCmd = &cobra.Command{
	Use:           "lumen",
	Short:         "Lumen: a markdown-native language for AI-native systems",
	Long:          "Compiles .lm/.lm.md documents to LIR bytecode and runs them on the Lumen register VM.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagStrict, "strict", false, "require all effects declared, as if @strict true")
	rootCmd.PersistentFlags().StringSliceVar(&flagDeps, "dep-root", nil, "additional module search roots")
	rootCmd.PersistentFlags().StringVar(&flagStdlib, "stdlib", "", "standard library root")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI; main exits nonzero on any returned error (spec.md
// §7 "exit code 1 with a formatted diagnostic on failure").
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the logger threaded into the compiler session and VM
// (spec.md §9: configuration is threaded explicitly from the CLI
// boundary).
func newLogger() *zap.Logger {
	if !flagVerbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
