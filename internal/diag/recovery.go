package diag

import "strings"

// MaxDiagnostics bounds how many errors a single stage collects before it
// stops accumulating and short-circuits, per spec.md §7: "a stage runs to
// completion collecting as many as recovery permits, then short-circuits if
// any are fatal."
const MaxDiagnostics = 200

// Sink accumulates diagnostics for one compiler stage.
type Sink struct {
	diags    List
	maxCount int
}

// NewSink creates a Sink with the default MaxDiagnostics cap.
func NewSink() *Sink { return &Sink{maxCount: MaxDiagnostics} }

// Report records d, dropping further Error-level diagnostics once maxCount
// is reached (warnings are never dropped).
func (s *Sink) Report(d Diagnostic) {
	if d.IsError() && s.ErrorCount() >= s.maxCount {
		return
	}
	s.diags = append(s.diags, d)
}

// ReportAll records every diagnostic in ds.
func (s *Sink) ReportAll(ds List) {
	for _, d := range ds {
		s.Report(d)
	}
}

func (s *Sink) HasErrors() bool   { return s.diags.HasErrors() }
func (s *Sink) ErrorCount() int   { return len(s.diags.Errors()) }
func (s *Sink) WarningCount() int { return len(s.diags.Warnings()) }
func (s *Sink) All() List         { return s.diags }

// FormatForTerminal renders every accumulated diagnostic followed by a
// one-line summary.
func (s *Sink) FormatForTerminal(color bool) string {
	var sb strings.Builder
	for _, d := range s.diags {
		sb.WriteString(d.FormatForTerminal(color))
		sb.WriteString("\n")
	}
	sb.WriteString(FormatSummary(s.ErrorCount(), s.WarningCount()))
	return sb.String()
}
