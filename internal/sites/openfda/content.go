package openfda

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// SideEffectsContent holds the reactions reported for one drug.
type SideEffectsContent struct {
	drug      string
	sourceURL string
	terms     []string
}

// NewSideEffectsContent creates a SideEffectsContent.
func NewSideEffectsContent(drug, sourceURL string, terms []string) *SideEffectsContent {
	if terms == nil {
		terms = []string{}
	}
	return &SideEffectsContent{drug: drug, sourceURL: sourceURL, terms: terms}
}

// Terms returns the reaction terms.
func (c *SideEffectsContent) Terms() []string { return c.terms }

func (c *SideEffectsContent) ToText() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Reported side effects: %s\n\n", c.drug)
	if len(c.terms) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, term := range c.terms {
		sb.WriteString("- " + term + "\n")
	}
	return sb.String(), nil
}

func (c *SideEffectsContent) ToMarkdown() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Reported side effects: %s\n\n", c.drug)
	fmt.Fprintf(&sb, "%d reactions\n\n", len(c.terms))
	for _, term := range c.terms {
		sb.WriteString("- " + term + "\n")
	}
	return sb.String(), nil
}

func (c *SideEffectsContent) ToHTML() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>Reported side effects: %s</h1>\n<ul>\n", html.EscapeString(c.drug))
	for _, term := range c.terms {
		fmt.Fprintf(&sb, "  <li>%s</li>\n", html.EscapeString(term))
	}
	sb.WriteString("</ul>\n")
	return sb.String(), nil
}

func (c *SideEffectsContent) ToJSON() ([]byte, error) {
	type jsonResult struct {
		Drug        string   `json:"drug"`
		Source      string   `json:"source"`
		SideEffects []string `json:"side_effects"`
	}
	return json.Marshal(jsonResult{Drug: c.drug, Source: c.sourceURL, SideEffects: c.terms})
}

func (c *SideEffectsContent) ToCSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Drug", "Reaction"})
	for _, term := range c.terms {
		_ = w.Write([]string{c.drug, term})
	}
	w.Flush()
	return buf.String(), w.Error()
}
