package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lumen-lang/lumen/internal/compile"
	"github.com/lumen-lang/lumen/internal/diag"
)

var flagOutput string

var buildCmd = &cobra.Command{
	Use:   "build <file.lm|file.lm.md>",
	Short: "Compile a Lumen document to a serialized LIR module",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output path (default: <input>.lir.json)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	file := args[0]
	unit, diags := compileInput(file)
	printDiagnostics(diags)
	if unit == nil {
		return fmt.Errorf("%d error(s)", len(diags.Errors()))
	}

	out := flagOutput
	if out == "" {
		out = strings.TrimSuffix(strings.TrimSuffix(file, ".md"), ".lm") + ".lir.json"
	}
	data, err := unit.Module.Serialize()
	if err != nil {
		return fmt.Errorf("serialize module: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	color.Green("compiled %s: %d cell(s), %d warning(s) -> %s",
		filepath.Base(file), len(unit.Module.Cells), len(diags.Warnings()), out)
	return nil
}

// compileInput builds a session from the shared root flags and compiles
// one file; run.go uses the identical path so build and run never diverge
// on search order or strictness.
func compileInput(file string) (*compile.Unit, diag.List) {
	session := compile.NewSession(compile.Options{
		Log:         newLogger(),
		PackageRoot: filepath.Dir(file),
		DepRoots:    flagDeps,
		StdlibRoot:  flagStdlib,
		Strict:      flagStrict,
	})
	return session.CompileFile(file)
}

// printDiagnostics renders every diagnostic to stderr in spec.md §6's
// terminal shape, colored when stderr is a terminal (fatih/color's own
// TTY detection via color.NoColor).
func printDiagnostics(diags diag.List) {
	useColor := !color.NoColor
	for _, d := range diags {
		fmt.Fprint(os.Stderr, d.FormatForTerminal(useColor))
	}
}
