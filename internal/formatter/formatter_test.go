package formatter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContent struct{}

func (fakeContent) ToHTML() (string, error)     { return "<p>html</p>", nil }
func (fakeContent) ToText() (string, error)     { return "text", nil }
func (fakeContent) ToMarkdown() (string, error) { return "# md", nil }
func (fakeContent) ToJSON() ([]byte, error)     { return []byte(`{"ok":true}`), nil }
func (fakeContent) ToCSV() (string, error)      { return "a,b\n", nil }

type failingContent struct{ fakeContent }

func (failingContent) ToJSON() ([]byte, error) { return nil, errors.New("boom") }

func TestFormat(t *testing.T) {
	tests := map[string]string{
		"html":     "<p>html</p>",
		"text":     "text",
		"":         "text",
		"Markdown": "# md",
		"md":       "# md",
		"csv":      "a,b\n",
		"json":     `{"ok":true}`,
	}
	for format, want := range tests {
		got, err := Format(fakeContent{}, format)
		require.NoError(t, err, format)
		assert.Equal(t, want, got, format)
	}
}

func TestFormat_Errors(t *testing.T) {
	_, err := Format(fakeContent{}, "yaml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Format(failingContent{}, "json")
	assert.EqualError(t, err, "boom")
}

func TestInferFromExtension(t *testing.T) {
	assert.Equal(t, "markdown", InferFromExtension("out.MD"))
	assert.Equal(t, "json", InferFromExtension("/tmp/report.json"))
	assert.Equal(t, "csv", InferFromExtension("r.csv"))
	assert.Equal(t, "", InferFromExtension("noext"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", ContentType("json"))
	assert.Equal(t, "text/plain; charset=utf-8", ContentType("text"))
	assert.Equal(t, "text/html; charset=utf-8", ContentType("html"))
}

func TestValid(t *testing.T) {
	for _, f := range append([]string{"", "md", "JSON"}, Formats...) {
		assert.True(t, Valid(f), f)
	}
	assert.False(t, Valid("xml"))
}
