// Package source holds the file and byte-span model shared by every stage of
// the Lumen pipeline, from the lexer through LIR diagnostics.
package source

import "strings"

// Source is a named input document plus a precomputed line-start table so
// byte offsets can be translated back into line/column pairs without
// rescanning the content on every diagnostic.
type Source struct {
	File    string
	Content string

	// lineStarts[i] is the byte offset of the first byte of line i+1 (1-indexed lines).
	lineStarts []int
}

// New builds a Source and precomputes its line-start table.
func New(file, content string) *Source {
	s := &Source{File: file, Content: content}
	s.lineStarts = computeLineStarts(content)
	return s
}

func computeLineStarts(content string) []int {
	starts := make([]int, 1, 64)
	starts[0] = 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// Position returns the 1-indexed line and column for a byte offset.
func (s *Source) Position(offset int) (line, col int) {
	// Binary search the largest lineStart <= offset.
	lo, hi := 0, len(s.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	line = lo + 1
	col = offset - s.lineStarts[lo] + 1
	return
}

// Line returns the full text of the given 1-indexed line, without its
// trailing newline.
func (s *Source) Line(n int) string {
	if n < 1 || n > len(s.lineStarts) {
		return ""
	}
	start := s.lineStarts[n-1]
	var end int
	if n == len(s.lineStarts) {
		end = len(s.Content)
	} else {
		end = s.lineStarts[n] - 1
	}
	if end < start {
		end = start
	}
	return strings.TrimRight(s.Content[start:end], "\r")
}

// LineCount returns the number of lines recorded for this source.
func (s *Source) LineCount() int { return len(s.lineStarts) }

// Span is a half-open byte range within a file, carrying the line/column of
// its start for cheap diagnostic rendering without a Source lookup.
type Span struct {
	File      string
	StartByte int
	EndByte   int
	StartLine int
	StartCol  int
}

// Merge returns the smallest span covering both a and b. Both must belong to
// the same file; Merge does not validate this.
func Merge(a, b Span) Span {
	m := a
	if b.StartByte < a.StartByte {
		m.StartByte = b.StartByte
		m.StartLine = b.StartLine
		m.StartCol = b.StartCol
	}
	if b.EndByte > a.EndByte {
		m.EndByte = b.EndByte
	}
	return m
}

// Len reports the byte length of the span.
func (s Span) Len() int { return s.EndByte - s.StartByte }
