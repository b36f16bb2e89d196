package pill

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// FeaturesContent renders extracted pill features.
type FeaturesContent struct {
	source   string
	features Features
}

// NewFeaturesContent creates a FeaturesContent. source names the image.
func NewFeaturesContent(source string, f Features) *FeaturesContent {
	return &FeaturesContent{source: source, features: f}
}

// Features returns the wrapped value.
func (c *FeaturesContent) Features() Features { return c.features }

func (c *FeaturesContent) ToText() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Imprint: %s\n", c.features.Imprint)
	fmt.Fprintf(&sb, "Color:   %s\n", c.features.Color)
	fmt.Fprintf(&sb, "Shape:   %s\n", c.features.Shape)
	return sb.String(), nil
}

func (c *FeaturesContent) ToMarkdown() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Pill features: %s\n\n", c.source)
	sb.WriteString("| Imprint | Color | Shape |\n| --- | --- | --- |\n")
	fmt.Fprintf(&sb, "| %s | %s | %s |\n", c.features.Imprint, c.features.Color, c.features.Shape)
	return sb.String(), nil
}

func (c *FeaturesContent) ToHTML() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>Pill features: %s</h1>\n<dl>\n", html.EscapeString(c.source))
	fmt.Fprintf(&sb, "  <dt>Imprint</dt><dd>%s</dd>\n", html.EscapeString(c.features.Imprint))
	fmt.Fprintf(&sb, "  <dt>Color</dt><dd>%s</dd>\n", html.EscapeString(c.features.Color))
	fmt.Fprintf(&sb, "  <dt>Shape</dt><dd>%s</dd>\n", html.EscapeString(c.features.Shape))
	sb.WriteString("</dl>\n")
	return sb.String(), nil
}

func (c *FeaturesContent) ToJSON() ([]byte, error) {
	return json.Marshal(c.features)
}

func (c *FeaturesContent) ToCSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Imprint", "Color", "Shape"})
	_ = w.Write([]string{c.features.Imprint, c.features.Color, c.features.Shape})
	w.Flush()
	return buf.String(), w.Error()
}
