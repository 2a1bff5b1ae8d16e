package mdextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_ConcatenatesLumenFences(t *testing.T) {
	doc := "# Title\n\n@strict true\n\nSome prose.\n\n```lumen\ncell main() -> Int\n```\n\nMore prose.\n\n```python\nignored = 1\n```\n\n```lumen\n  return 1\nend\n```\n"
	res := Extract(doc)

	require.Len(t, res.Directives, 1)
	assert.Equal(t, "strict", res.Directives[0].Name)
	assert.Equal(t, "true", res.Directives[0].Value)

	assert.Equal(t, "cell main() -> Int\n  return 1\nend\n", res.Source)
}

func TestExtract_NonLumenFenceIgnored(t *testing.T) {
	doc := "```go\npackage main\n```\n"
	res := Extract(doc)
	assert.Empty(t, res.Source)
}

func TestIsMarkdown(t *testing.T) {
	assert.True(t, IsMarkdown("foo.lm.md"))
	assert.False(t, IsMarkdown("foo.lm"))
	assert.False(t, IsMarkdown("foo.md"))
}

func TestDirective_BoolValue(t *testing.T) {
	d := Directive{Name: "strict", Value: ""}
	v, ok := d.BoolValue()
	assert.True(t, ok)
	assert.True(t, v)

	d2 := Directive{Name: "deterministic", Value: "false"}
	v2, ok2 := d2.BoolValue()
	assert.True(t, ok2)
	assert.False(t, v2)

	d3 := Directive{Name: "x", Value: "notabool"}
	_, ok3 := d3.BoolValue()
	assert.False(t, ok3)
}
