package scraper

import (
	"context"
	"errors"
	"time"

	"pillscan/internal/config"

	"go.uber.org/zap"
)

// ErrMissingInput is wrapped by scrapers when a required argument is absent.
var ErrMissingInput = errors.New("missing input")

// Scraper is one named pillscan operation. target is the operation's main
// input: an image path, an imprint or a drug name.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context, target string, opts Options) (Content, error)
}

// Content is an operation result that can be rendered in every output format.
type Content interface {
	ToHTML() (string, error)
	ToText() (string, error)
	ToMarkdown() (string, error)
	ToJSON() ([]byte, error)
	ToCSV() (string, error)
}

type Options struct {
	Config  *config.Config
	Logger  *zap.Logger
	Timeout time.Duration
	ShowUI  bool
	// Body carries raw input bytes (an uploaded image) in place of a file
	// named by target.
	Body []byte
	// Remote marks input from a network client. Remote targets are never
	// opened as local files.
	Remote bool
	Extra  map[string]string // Site-specific parameters (color/shape/with)
	// IDCache, when set, lets browser-backed sites reuse resolved IDs.
	IDCache IDCache
}

// IDCache remembers site identifiers by name. Get reports a miss with ok
// false and a nil error.
type IDCache interface {
	Get(ctx context.Context, name string) (id string, ok bool, err error)
	Set(ctx context.Context, name, id string) error
}

// Param returns opts.Extra[key], or def when it is missing or empty.
func (o Options) Param(key, def string) string {
	if v, ok := o.Extra[key]; ok && v != "" {
		return v
	}
	return def
}

// Log returns the configured logger or a no-op one.
func (o Options) Log() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
