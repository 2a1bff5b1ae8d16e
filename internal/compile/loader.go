package compile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lumen-lang/lumen/internal/resolver"
)

// extensions is the filename search order for one import path segment
// (spec.md §6 "Filenames are tried in order").
var extensions = []string{".lm.md", ".lm", ".lumen"}

// importerFor builds the resolver.Importer closure for one compile: it
// locates the imported module on disk, compiles it through the same
// session (memoized, cycle-checked), collects the resulting unit so the
// caller can merge its LIR, and hands the resolver the module's exported
// symbol table.
func (s *Session) importerFor(chain []string, collected *[]*Unit) resolver.Importer {
	return func(path string) (*resolver.ExternalModule, error) {
		for _, prior := range chain {
			if prior == path {
				return nil, fmt.Errorf("%s", cycleMessage(chain, path))
			}
		}

		file, err := s.locate(path)
		if err != nil {
			return nil, err
		}
		for _, inFlight := range s.stack {
			if inFlight == file {
				return nil, fmt.Errorf("%s", cycleMessage(append(append([]string{}, chain...), path), path))
			}
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("cannot read module %s (%s): %w", path, file, err)
		}
		unit, diags := s.compile(file, string(content), append(append([]string{}, chain...), path))
		if unit == nil {
			errs := diags.Errors()
			if len(errs) > 0 {
				return nil, fmt.Errorf("module %s failed to compile: %s", path, errs[0].Message)
			}
			return nil, fmt.Errorf("module %s failed to compile", path)
		}
		*collected = append(*collected, unit)

		exports := map[string]*resolver.Symbol{}
		for _, name := range unit.Resolution.Table.Names() {
			if sym, ok := unit.Resolution.Table.Lookup(name); ok {
				exports[name] = sym
			}
		}
		return &resolver.ExternalModule{Path: path, Exports: exports}, nil
	}
}

// locate maps a dotted import path to a file, searching the package root,
// then dependency roots, then the standard library (spec.md §6 "Module
// resolution").
func (s *Session) locate(path string) (string, error) {
	rel := strings.ReplaceAll(path, ".", string(filepath.Separator))

	roots := make([]string, 0, 2+len(s.opts.DepRoots))
	roots = append(roots, s.opts.PackageRoot)
	roots = append(roots, s.opts.DepRoots...)
	if s.opts.StdlibRoot != "" {
		roots = append(roots, s.opts.StdlibRoot)
	}

	var tried []string
	for _, root := range roots {
		for _, ext := range extensions {
			candidate := filepath.Join(root, rel+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
			tried = append(tried, candidate)
		}
	}
	return "", fmt.Errorf("module %q not found (tried %s)", path, strings.Join(tried, ", "))
}
