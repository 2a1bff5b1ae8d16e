package diag

import "fmt"

// SuggestUndefinedVar builds the Help-level note the resolver attaches to an
// UndefinedVar diagnostic when fuzzy matching (see internal/resolver, which
// uses the teacher's internal/cli/ui.FindSimilar) turns up candidates within
// edit distance 2.
func SuggestUndefinedVar(name string, candidates []string) *Fix {
	if len(candidates) == 0 {
		return nil
	}
	desc := fmt.Sprintf("undefined name %q; did you mean %q?", name, candidates[0])
	if len(candidates) > 1 {
		desc = fmt.Sprintf("undefined name %q; did you mean one of %v?", name, candidates)
	}
	return &Fix{Description: desc, NewCode: candidates[0], Confidence: 0.7}
}

// SuggestUnterminatedString builds the Help note for an unterminated string
// literal, proposing the closing quote.
func SuggestUnterminatedString() *Fix {
	return &Fix{Description: "string literal is missing a closing quote", NewCode: `"`, Confidence: 0.5}
}

// SuggestIncompleteMatch lists the variants still uncovered by a match
// expression so the diagnostic can show them directly.
func SuggestIncompleteMatch(missing []string) *Fix {
	if len(missing) == 0 {
		return nil
	}
	return &Fix{
		Description: fmt.Sprintf("add arms for: %v, or a wildcard `_ =>` arm", missing),
		Confidence:  1.0,
	}
}

// SuggestBracketFix proposes inserting the missing closing bracket kind.
func SuggestBracketFix(closing string) *Fix {
	return &Fix{Description: fmt.Sprintf("insert missing %q", closing), NewCode: closing, Confidence: 0.6}
}
