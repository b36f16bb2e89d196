// Package interactions looks up drug-food interactions between two drugs on
// the drugs.com interaction checker.
package interactions

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pillscan/internal/httpx"
	"pillscan/internal/logging"
	"pillscan/internal/metrics"
)

const upstream = "drugs.interactions"

// IDResolver maps a drug name to its site ID.
type IDResolver interface {
	Resolve(ctx context.Context, drugName string) (string, error)
}

// Client fetches and parses interaction-check pages.
type Client struct {
	http     *http.Client
	baseURL  string
	resolver IDResolver
	logger   *zap.Logger
}

// NewClient creates a Client. baseURL is the site root.
func NewClient(c *http.Client, baseURL string, resolver IDResolver, logger *zap.Logger) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{
		http:     c,
		baseURL:  strings.TrimRight(baseURL, "/"),
		resolver: resolver,
		logger:   logging.OrNop(logger),
	}
}

// CheckURL returns the interaction-check page for the given site IDs.
func (c *Client) CheckURL(ids ...string) string {
	return httpx.Requote(c.baseURL + "/interactions-check.php?drug_list=" + strings.Join(ids, ","))
}

// Check resolves both drugs and parses their interaction report. A non-2xx
// response is returned as *httpx.HTTPStatusError.
func (c *Client) Check(ctx context.Context, drug1, drug2 string) (Report, string, error) {
	id1, err := c.resolver.Resolve(ctx, drug1)
	if err != nil {
		return Report{}, "", fmt.Errorf("failed to resolve %q: %w", drug1, err)
	}
	id2, err := c.resolver.Resolve(ctx, drug2)
	if err != nil {
		return Report{}, "", fmt.Errorf("failed to resolve %q: %w", drug2, err)
	}

	u := c.CheckURL(id1, id2)
	report, err := c.fetch(ctx, u)
	if err != nil {
		return Report{}, u, err
	}
	return report, u, nil
}

func (c *Client) fetch(ctx context.Context, u string) (Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Report{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(upstream, 0)
		return Report{}, fmt.Errorf("failed to fetch interactions: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(upstream, resp.StatusCode)

	if !httpx.IsSuccess(resp.StatusCode) {
		return Report{}, &httpx.HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}

	report, err := ParseReport(resp.Body)
	if err != nil {
		return Report{}, err
	}
	if report.Message != "" {
		c.logger.Info("no interactions parsed", zap.String("url", u), zap.String("reason", report.Message))
	} else {
		c.logger.Debug("interactions parsed", zap.String("url", u), zap.Int("count", len(report.Interactions)))
	}
	return report, nil
}
