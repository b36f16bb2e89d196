package imprint

import (
	"context"
	"fmt"

	"pillscan/internal/httpx"
	"pillscan/internal/scraper"
)

func init() {
	scraper.Register(&ImprintScraper{})
}

// ImprintScraper looks up candidate drugs by imprint. Color and shape come
// from opts.Extra["color"] and opts.Extra["shape"].
type ImprintScraper struct{}

func (s *ImprintScraper) Name() string { return "drugs.imprint" }

func (s *ImprintScraper) Scrape(ctx context.Context, imprint string, opts scraper.Options) (scraper.Content, error) {
	if imprint == "" {
		return nil, fmt.Errorf("%w: imprint is required for --site drugs.imprint", scraper.ErrMissingInput)
	}

	client, err := ClientFromOptions(opts)
	if err != nil {
		return nil, err
	}

	// Omitted filters stay empty so drugs.com searches by imprint alone.
	color := opts.Param("color", "")
	shape := opts.Param("shape", "")

	m, err := client.Lookup(ctx, imprint, color, shape)
	if err != nil {
		return nil, fmt.Errorf("failed to look up imprint: %w", err)
	}
	return NewMatchContent(client.SearchURL(imprint, color, shape), m), nil
}

// ClientFromOptions builds a Client from the configuration in opts.
func ClientFromOptions(opts scraper.Options) (*Client, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("configuration is required for drugs.com lookups")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = opts.Config.HTTPTimeout
	}
	hc, err := httpx.NewClient(timeout, opts.Config.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return NewClient(hc, opts.Config.DrugsBaseURL, opts.Log()), nil
}
