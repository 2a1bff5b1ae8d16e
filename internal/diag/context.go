package diag

import (
	"os"
	"strings"
)

// Enrich attaches surrounding source lines to d, reading them out of
// sourceContent (three lines before the offending line, the line itself, and
// three lines after — the window the terminal formatter underlines).
func Enrich(d Diagnostic, sourceContent string) Diagnostic {
	return d.WithContext(extractContext(d.Location, sourceContent))
}

// EnrichFromFile re-reads d.Location.File from disk and enriches d with its
// context; used when a diagnostic is constructed without the source text at
// hand (e.g. resolver diagnostics raised long after lexing).
func EnrichFromFile(d Diagnostic) Diagnostic {
	content, err := os.ReadFile(d.Location.File)
	if err != nil {
		return d
	}
	return Enrich(d, string(content))
}

func extractContext(loc Location, sourceContent string) Context {
	lines := strings.Split(sourceContent, "\n")
	if loc.Line < 1 || loc.Line > len(lines) {
		return Context{}
	}

	errIdx := loc.Line - 1
	start := errIdx - 3
	if start < 0 {
		start = 0
	}
	end := errIdx + 4
	if end > len(lines) {
		end = len(lines)
	}

	ctxLines := append([]string(nil), lines[start:end]...)

	hiStart := loc.Column - 1
	hiLen := loc.Length
	if hiLen <= 0 {
		hiLen = 1
	}

	return Context{
		SourceLines: ctxLines,
		Highlight: Highlight{
			Line:  errIdx - start,
			Start: hiStart,
			End:   hiStart + hiLen,
		},
	}
}
