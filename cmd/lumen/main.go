package main

import (
	"fmt"
	"os"

	"github.com/lumen-lang/lumen/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		os.Exit(1)
	}
}
