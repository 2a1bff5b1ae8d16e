// Package mdextract implements spec.md §4.2: extracting fenced ```lumen
// blocks (and leading `@directive` lines) out of a `.lm.md` document into a
// single concatenated source string the lexer can consume, while recording a
// mapping from concatenated byte offsets back to the original file's
// line/column so every later diagnostic points at real source. Fence
// detection follows the same line-scanning approach as a general-purpose
// markdown lexer, simplified to the one thing Lumen needs: finding fences
// tagged `lumen` and their info strings.
package mdextract

import (
	"strconv"
	"strings"
)

// Directive is one `@name value` line found outside any fence.
type Directive struct {
	Name  string
	Value string
	Line  int
}

// OffsetMapping lets a downstream diagnostic translate a position in the
// concatenated output back to the original document.
type OffsetMapping struct {
	// OutputOffset is where this run starts in the extracted text.
	OutputOffset int
	// SourceLine is the 1-indexed line in the original document the run's
	// first byte corresponds to.
	SourceLine int
	// Extract records one mapping per copied line; fenced content is
	// copied verbatim line for line.
}

// Result is the product of extraction: the concatenated Lumen source, the
// directives seen, and the offset mapping table.
type Result struct {
	Source     string
	Directives []Directive
	Mappings   []OffsetMapping
}

// IsMarkdown reports whether filename names a markdown-wrapped Lumen document.
func IsMarkdown(filename string) bool {
	return strings.HasSuffix(filename, ".lm.md")
}

// Extract concatenates every ```lumen fenced block's content (in document
// order, separated by a newline) and collects `@directive` lines that appear
// outside any fence. Raw `.lm` inputs should not be passed through Extract;
// callers skip this stage entirely per spec.md §4.2.
func Extract(content string) Result {
	lines := strings.Split(content, "\n")

	var out strings.Builder
	var directives []Directive
	var mappings []OffsetMapping

	inFence := false
	fenceMarker := ""
	fenceIsLumen := false

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		if !inFence {
			if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
				marker := trimmed[:3]
				info := strings.TrimSpace(trimmed[3:])
				inFence = true
				fenceMarker = marker
				fenceIsLumen = info == "lumen"
				continue
			}
			if strings.HasPrefix(trimmed, "@") && !fenceIsLumen {
				name, value := parseDirectiveLine(trimmed[1:])
				if name != "" {
					directives = append(directives, Directive{Name: name, Value: value, Line: lineNo})
				}
				continue
			}
			continue
		}

		// inFence
		if strings.HasPrefix(trimmed, fenceMarker) {
			inFence = false
			fenceMarker = ""
			fenceIsLumen = false
			continue
		}

		if fenceIsLumen {
			mappings = append(mappings, OffsetMapping{OutputOffset: out.Len(), SourceLine: lineNo})
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}

	return Result{Source: out.String(), Directives: directives, Mappings: mappings}
}

func parseDirectiveLine(rest string) (name, value string) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", ""
	}
	parts := strings.SplitN(rest, " ", 2)
	name = parts[0]
	if len(parts) > 1 {
		value = strings.TrimSpace(parts[1])
	}
	return name, value
}

// SourceLineFor translates a byte offset in the concatenated output back to
// the 1-indexed line number of the original document.
func (r Result) SourceLineFor(outputOffset int) int {
	best := 1
	for _, m := range r.Mappings {
		if m.OutputOffset <= outputOffset {
			// outputOffset falls within or after this run; compute the
			// number of newlines consumed since the run start to find the
			// exact source line.
			consumed := r.Source[m.OutputOffset:outputOffset]
			best = m.SourceLine + strings.Count(consumed, "\n")
		} else {
			break
		}
	}
	return best
}

// Directive accessors used by the resolver/session to apply @strict and
// @deterministic.

// BoolValue parses a directive's value as a boolean, defaulting to true when
// the value is empty (bare `@strict` means `@strict true`).
func (d Directive) BoolValue() (bool, bool) {
	if d.Value == "" {
		return true, true
	}
	b, err := strconv.ParseBool(d.Value)
	if err != nil {
		return false, false
	}
	return b, true
}
