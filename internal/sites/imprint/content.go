package imprint

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"pillscan/internal/extractor"
)

var choiceLabels = []string{"1st choice", "2nd choice", "3rd choice"}

// MatchContent renders an imprint search result.
type MatchContent struct {
	sourceURL string
	match     Match
}

// NewMatchContent creates a MatchContent. sourceURL may be empty.
func NewMatchContent(sourceURL string, m Match) *MatchContent {
	return &MatchContent{sourceURL: sourceURL, match: m}
}

// Match returns the wrapped value.
func (c *MatchContent) Match() Match { return c.match }

func (c *MatchContent) ToText() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Imprint: %s  Color: %s  Shape: %s\n\n", c.match.Imprint, c.match.Color, c.match.Shape)
	for i, choice := range c.match.Choices() {
		fmt.Fprintf(&sb, "%s: %s\n", choiceLabels[i], choice)
	}
	return sb.String(), nil
}

func (c *MatchContent) ToHTML() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>Imprint search: %s</h1>\n", html.EscapeString(c.match.Imprint))
	fmt.Fprintf(&sb, "<p>Color: %s, shape: %s</p>\n", html.EscapeString(c.match.Color), html.EscapeString(c.match.Shape))
	if c.sourceURL != "" {
		fmt.Fprintf(&sb, "<p><a href=%q>Source</a></p>\n", html.EscapeString(c.sourceURL))
	}
	sb.WriteString("<ol>\n")
	for _, choice := range c.match.Choices() {
		fmt.Fprintf(&sb, "  <li>%s</li>\n", html.EscapeString(choice))
	}
	sb.WriteString("</ol>\n")
	return sb.String(), nil
}

func (c *MatchContent) ToMarkdown() (string, error) {
	h, err := c.ToHTML()
	if err != nil {
		return "", err
	}
	return extractor.HTMLToMarkdown(h)
}

func (c *MatchContent) ToJSON() ([]byte, error) {
	return json.Marshal(c.match)
}

func (c *MatchContent) ToCSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(append([]string{"Imprint", "Color", "Shape"}, choiceLabels...))
	_ = w.Write(append([]string{c.match.Imprint, c.match.Color, c.match.Shape}, c.match.Choices()...))
	w.Flush()
	return buf.String(), w.Error()
}
