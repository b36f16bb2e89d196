package openfda

import (
	"context"
	"fmt"

	"pillscan/internal/httpx"
	"pillscan/internal/scraper"
)

func init() {
	scraper.Register(&EventsScraper{})
}

// EventsScraper lists adverse reactions reported for a drug name.
type EventsScraper struct{}

func (s *EventsScraper) Name() string { return "openfda.events" }

func (s *EventsScraper) Scrape(ctx context.Context, drug string, opts scraper.Options) (scraper.Content, error) {
	if drug == "" {
		return nil, fmt.Errorf("%w: drug name is required for --site openfda.events", scraper.ErrMissingInput)
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("configuration is required for openFDA lookups")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = opts.Config.HTTPTimeout
	}
	hc, err := httpx.NewClient(timeout, opts.Config.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	client := NewClient(hc, opts.Config.OpenFDABaseURL, opts.Log())
	terms, err := client.SideEffects(ctx, drug)
	if err != nil {
		return nil, fmt.Errorf("failed to look up side effects: %w", err)
	}
	return NewSideEffectsContent(drug, client.EventsURL(drug), terms), nil
}
