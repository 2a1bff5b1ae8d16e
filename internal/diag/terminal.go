package diag

import (
	"fmt"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// FormatForTerminal renders d exactly in the shape spec.md §6 mandates:
//
//	{level}: {message}
//	  --> {file}:{line}:{col}
//	    = note: …
//
// with ANSI color when color is true.
func (d Diagnostic) FormatForTerminal(color bool) string {
	var sb strings.Builder

	lvlColor := ""
	reset := ""
	if color {
		lvlColor = colorBold + severityColor(d.Level)
		reset = colorReset
	}
	sb.WriteString(fmt.Sprintf("%s%s%s: %s\n", lvlColor, d.Level, reset, d.Message))

	arrow := "-->"
	if color {
		arrow = colorCyan + "-->" + colorReset
	}
	sb.WriteString(fmt.Sprintf("  %s %s:%d:%d\n", arrow, d.Location.File, d.Location.Line, d.Location.Column))

	if len(d.Context.SourceLines) > 0 {
		sb.WriteString(formatSourceContext(d.Context, color))
	}

	for _, note := range d.Notes {
		sb.WriteString(fmt.Sprintf("    = note: %s\n", note))
	}

	if d.Fix != nil {
		sb.WriteString(fmt.Sprintf("    = help: %s\n", d.Fix.Description))
		if d.Fix.NewCode != "" {
			for _, line := range strings.Split(d.Fix.NewCode, "\n") {
				sb.WriteString("      " + line + "\n")
			}
		}
	}

	for _, rel := range d.Related {
		sb.WriteString(fmt.Sprintf("    = note: %s:%d:%d: %s\n", rel.Location.File, rel.Location.Line, rel.Location.Column, rel.Message))
	}

	return sb.String()
}

func formatSourceContext(ctx Context, color bool) string {
	var sb strings.Builder
	blue, red, gray, reset := "", "", "", ""
	if color {
		blue, red, gray, reset = colorBlue, colorRed, colorGray, colorReset
	}

	sb.WriteString(fmt.Sprintf("   %s|%s\n", blue, reset))
	for i, line := range ctx.SourceLines {
		isErrLine := i == ctx.Highlight.Line
		lineColor := gray
		if isErrLine {
			lineColor = ""
		}
		sb.WriteString(fmt.Sprintf("%s%3d%s %s|%s %s\n", lineColor, i+1, reset, blue, reset, line))
		if isErrLine {
			sb.WriteString(fmt.Sprintf("    %s|%s ", blue, reset))
			sb.WriteString(strings.Repeat(" ", max0(ctx.Highlight.Start)))
			hl := ctx.Highlight.End - ctx.Highlight.Start
			if hl <= 0 {
				hl = 1
			}
			sb.WriteString(fmt.Sprintf("%s%s%s\n", red, strings.Repeat("^", hl), reset))
		}
	}
	sb.WriteString(fmt.Sprintf("   %s|%s\n", blue, reset))
	return sb.String()
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func severityColor(l Level) string {
	switch l {
	case Error:
		return colorRed
	case Warning:
		return colorYellow
	case Note:
		return colorBlue
	case Help:
		return colorCyan
	default:
		return colorReset
	}
}

// FormatSummary renders a one-line tally of errors and warnings, matching
// the teacher's build-summary footer.
func FormatSummary(errorCount, warningCount int) string {
	var parts []string
	if errorCount > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s)", errorCount))
	}
	if warningCount > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", warningCount))
	}
	if len(parts) == 0 {
		return "no errors or warnings\n"
	}
	return fmt.Sprintf("compilation failed with %s\n", strings.Join(parts, " and "))
}
