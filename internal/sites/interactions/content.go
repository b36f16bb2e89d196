package interactions

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"pillscan/internal/extractor"
)

// ReportContent renders an interaction report for a drug pair.
type ReportContent struct {
	drugs     [2]string
	sourceURL string
	report    Report
}

// NewReportContent creates a ReportContent.
func NewReportContent(drug1, drug2, sourceURL string, r Report) *ReportContent {
	return &ReportContent{drugs: [2]string{drug1, drug2}, sourceURL: sourceURL, report: r}
}

// Report returns the wrapped report.
func (c *ReportContent) Report() Report { return c.report }

func (c *ReportContent) title() string {
	return fmt.Sprintf("Interactions: %s + %s", c.drugs[0], c.drugs[1])
}

func (c *ReportContent) ToText() (string, error) {
	var sb strings.Builder
	sb.WriteString(c.title() + "\n\n")
	if c.report.Message != "" {
		sb.WriteString(c.report.Message + "\n")
		return sb.String(), nil
	}
	for i, in := range c.report.Interactions {
		fmt.Fprintf(&sb, "[%s]\n", Label(i))
		if in.Title != "" {
			sb.WriteString(in.Title + "\n")
		}
		if in.AppliesTo != "" {
			sb.WriteString(in.AppliesTo + "\n")
		}
		if in.Description != "" {
			sb.WriteString(in.Description + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (c *ReportContent) ToHTML() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(c.title()))
	if c.sourceURL != "" {
		fmt.Fprintf(&sb, "<p><a href=%q>Source</a></p>\n", html.EscapeString(c.sourceURL))
	}
	if c.report.Message != "" {
		fmt.Fprintf(&sb, "<p>%s</p>\n", html.EscapeString(c.report.Message))
		return sb.String(), nil
	}
	for i, in := range c.report.Interactions {
		fmt.Fprintf(&sb, "<h2>%s</h2>\n", html.EscapeString(Label(i)))
		if in.Title != "" {
			fmt.Fprintf(&sb, "<h3>%s</h3>\n", html.EscapeString(in.Title))
		}
		if in.AppliesTo != "" {
			fmt.Fprintf(&sb, "<p><em>%s</em></p>\n", html.EscapeString(in.AppliesTo))
		}
		if in.Description != "" {
			fmt.Fprintf(&sb, "<p>%s</p>\n", html.EscapeString(in.Description))
		}
	}
	return sb.String(), nil
}

func (c *ReportContent) ToMarkdown() (string, error) {
	h, err := c.ToHTML()
	if err != nil {
		return "", err
	}
	return extractor.HTMLToMarkdown(h)
}

func (c *ReportContent) ToJSON() ([]byte, error) {
	return json.Marshal(c.report)
}

func (c *ReportContent) ToCSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Entry", "Title", "Applies To", "Description"})
	if c.report.Message != "" {
		_ = w.Write([]string{"message", "", "", c.report.Message})
	}
	for i, in := range c.report.Interactions {
		_ = w.Write([]string{Label(i), in.Title, in.AppliesTo, in.Description})
	}
	w.Flush()
	return buf.String(), w.Error()
}
