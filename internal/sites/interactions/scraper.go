package interactions

import (
	"context"
	"fmt"

	"pillscan/internal/browser"
	"pillscan/internal/httpx"
	"pillscan/internal/scraper"
)

func init() {
	scraper.Register(&InteractionsScraper{})
}

// InteractionsScraper reports drug-food interactions for a pair of drugs.
// The second drug comes from opts.Extra["with"].
type InteractionsScraper struct {
	// Open overrides the browser session factory; nil launches rod.
	Open OpenFunc
}

func (s *InteractionsScraper) Name() string { return "drugs.interactions" }

func (s *InteractionsScraper) Scrape(ctx context.Context, drug1 string, opts scraper.Options) (scraper.Content, error) {
	drug2 := opts.Param("with", "")
	if drug1 == "" || drug2 == "" {
		return nil, fmt.Errorf("%w: two drug names are required for --site drugs.interactions", scraper.ErrMissingInput)
	}

	client, err := s.clientFromOptions(opts)
	if err != nil {
		return nil, err
	}

	report, sourceURL, err := client.Check(ctx, drug1, drug2)
	if err != nil {
		return nil, fmt.Errorf("failed to check interactions: %w", err)
	}
	return NewReportContent(drug1, drug2, sourceURL, report), nil
}

func (s *InteractionsScraper) clientFromOptions(opts scraper.Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required for drugs.com lookups")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = cfg.HTTPTimeout
	}
	hc, err := httpx.NewClient(timeout, cfg.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	open := s.Open
	if open == nil {
		open = BrowserOpener(browser.Config{
			ProxyURL:   cfg.ProxyURL,
			Headless:   cfg.Headless && !opts.ShowUI,
			NavTimeout: timeout,
		})
	}

	resolverOpts := []ResolverOption{
		WithLogger(opts.Log()),
		WithRetryPolicy(RetryPolicy{
			InitialDelay: cfg.ResolveInitialDelay,
			Step:         cfg.ResolveDelayStep,
			MaxAttempts:  cfg.ResolveMaxAttempts,
		}),
	}
	if opts.IDCache != nil {
		resolverOpts = append(resolverOpts, WithCache(opts.IDCache))
	}

	resolver := NewResolver(open, cfg.DrugsBaseURL, resolverOpts...)
	return NewClient(hc, cfg.DrugsBaseURL, resolver, opts.Log()), nil
}
