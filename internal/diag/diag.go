// Package diag is Lumen's diagnostics engine: the typed, spanned error and
// warning model used by every compiler stage (lexer, markdown, parser,
// resolver, typecheck, constraint, lower) and formatted at the CLI boundary
// exactly as spec.md §6 describes:
//
//	{level}: {message}
//	  --> {file}:{line}:{col}
//	    = note: …
package diag

import (
	"encoding/json"
	"fmt"
)

// Level is the severity of a Diagnostic, matching spec.md §6's
// {level: Error|Warning|Note|Help}.
type Level int

const (
	Help Level = iota
	Note
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Help:
		return "help"
	case Note:
		return "note"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "error"
	}
}

func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

func (l *Level) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	switch s {
	case "help":
		*l = Help
	case "note":
		*l = Note
	case "warning":
		*l = Warning
	default:
		*l = Error
	}
	return nil
}

// Location is a rendering-ready source position.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Length int    `json:"length"`
}

// Context carries the surrounding source lines used when rendering to a
// terminal; three lines before and after the offending line, plus the
// highlighted span within the error line.
type Context struct {
	SourceLines []string  `json:"source_lines"`
	Highlight   Highlight `json:"highlight"`
}

// Highlight identifies the sub-range of Context.SourceLines to underline.
type Highlight struct {
	Line  int `json:"line"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Fix is an auto-fix suggestion attached to a diagnostic.
type Fix struct {
	Description string  `json:"description"`
	OldCode     string  `json:"old_code"`
	NewCode     string  `json:"new_code"`
	Confidence  float64 `json:"confidence"`
}

// Diagnostic is a single compiler- or runtime-surfaced message: the unit
// spec.md §6 calls "Diagnostics carry {level, message, span, notes[]}".
type Diagnostic struct {
	Phase    string // "lex", "markdown", "parse", "resolve", "typecheck", "constraint", "lower"
	Code     string // "E001", "E201", ...
	Message  string
	Level    Level
	Location Location
	Notes    []string
	Context  Context
	Fix      *Fix
	Related  []Diagnostic
}

// New creates a bare Diagnostic.
func New(phase, code, message string, loc Location, level Level) Diagnostic {
	return Diagnostic{Phase: phase, Code: code, Message: message, Location: loc, Level: level}
}

// Error implements the error interface so a Diagnostic can be returned or
// wrapped anywhere a plain error is expected.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s[%s]: %s", d.Location.File, d.Location.Line, d.Location.Column, d.Level, d.Code, d.Message)
}

func (d Diagnostic) WithNote(note string) Diagnostic {
	d.Notes = append(d.Notes, note)
	return d
}

func (d Diagnostic) WithContext(ctx Context) Diagnostic {
	d.Context = ctx
	return d
}

func (d Diagnostic) WithFix(fix Fix) Diagnostic {
	d.Fix = &fix
	return d
}

func (d Diagnostic) WithRelated(related Diagnostic) Diagnostic {
	d.Related = append(d.Related, related)
	return d
}

func (d Diagnostic) IsError() bool   { return d.Level == Error }
func (d Diagnostic) IsWarning() bool { return d.Level == Warning }

// MarshalJSON renders snake_case fields for machine consumption, matching
// the teacher's JSON diagnostic encoder.
func (d Diagnostic) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Phase    string       `json:"phase"`
		Code     string       `json:"code"`
		Message  string       `json:"message"`
		Level    Level        `json:"level"`
		Location Location     `json:"location"`
		Notes    []string     `json:"notes"`
		Context  Context      `json:"context"`
		Fix      *Fix         `json:"fix,omitempty"`
		Related  []Diagnostic `json:"related,omitempty"`
	}{d.Phase, d.Code, d.Message, d.Level, d.Location, d.Notes, d.Context, d.Fix, d.Related})
}

// List is an ordered collection of diagnostics accumulated by a stage.
type List []Diagnostic

// HasErrors reports whether any diagnostic in the list is at Error level.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.IsError() {
			return true
		}
	}
	return false
}

// Errors returns only the Error-level diagnostics.
func (l List) Errors() List {
	out := make(List, 0, len(l))
	for _, d := range l {
		if d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the Warning-level diagnostics.
func (l List) Warnings() List {
	out := make(List, 0, len(l))
	for _, d := range l {
		if d.IsWarning() {
			out = append(out, d)
		}
	}
	return out
}
