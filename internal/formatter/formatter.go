package formatter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"pillscan/internal/scraper"
)

// ErrUnsupportedFormat is returned for an unknown output format name.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Formats lists the accepted output format names.
var Formats = []string{"text", "json", "markdown", "html", "csv"}

// Valid reports whether format names a supported output format.
func Valid(format string) bool {
	switch strings.ToLower(format) {
	case "", "text", "json", "markdown", "md", "html", "csv":
		return true
	}
	return false
}

func Format(content scraper.Content, format string) (string, error) {
	switch strings.ToLower(format) {
	case "html":
		return content.ToHTML()
	case "text", "":
		return content.ToText()
	case "markdown", "md":
		return content.ToMarkdown()
	case "csv":
		return content.ToCSV()
	case "json":
		b, err := content.ToJSON()
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ContentType returns the MIME type the server sends for format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "html":
		return "text/html; charset=utf-8"
	case "markdown", "md":
		return "text/markdown; charset=utf-8"
	case "csv":
		return "text/csv; charset=utf-8"
	case "json":
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// InferFromExtension infers output format from file extension, or returns ""
// when the extension is not recognised.
func InferFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return "markdown"
	case ".json":
		return "json"
	case ".html", ".htm":
		return "html"
	case ".txt":
		return "text"
	case ".csv":
		return "csv"
	default:
		return ""
	}
}
