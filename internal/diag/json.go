package diag

import "encoding/json"

// Report is the top-level JSON shape FormatReport renders.
type Report struct {
	Status   string     `json:"status"`
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
	Summary  Summary    `json:"summary"`
}

// Summary tallies a List.
type Summary struct {
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
	TotalCount   int `json:"total_count"`
}

// FormatReport splits l into errors/warnings and renders the combined JSON
// report. indent controls MarshalIndent vs Marshal.
func FormatReport(l List, indent bool) (string, error) {
	errs := l.Errors()
	warns := l.Warnings()

	status := "success"
	switch {
	case len(errs) > 0:
		status = "error"
	case len(warns) > 0:
		status = "warning"
	}

	report := Report{
		Status:   status,
		Errors:   []Diagnostic(errs),
		Warnings: []Diagnostic(warns),
		Summary: Summary{
			ErrorCount:   len(errs),
			WarningCount: len(warns),
			TotalCount:   len(l),
		},
	}

	var data []byte
	var err error
	if indent {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
