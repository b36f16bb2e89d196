package imprint

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

// NotAvailable fills choice slots the page did not provide.
const NotAvailable = "N/A"

const upstream = "drugs.imprint"

// Match is the result of an imprint search.
type Match struct {
	Imprint      string `json:"imprint"`
	Color        string `json:"color"`
	Shape        string `json:"shape"`
	FirstChoice  string `json:"1st choice"`
	SecondChoice string `json:"2nd choice"`
	ThirdChoice  string `json:"3rd choice"`
}

// Choices returns the three choice slots in order.
func (m Match) Choices() []string {
	return []string{m.FirstChoice, m.SecondChoice, m.ThirdChoice}
}

// NewMatch builds a Match from up to three choices, padding with NotAvailable.
func NewMatch(imprint, color, shape string, choices []string) Match {
	at := func(i int) string {
		if i < len(choices) {
			return choices[i]
		}
		return NotAvailable
	}
	return Match{
		Imprint:      imprint,
		Color:        color,
		Shape:        shape,
		FirstChoice:  at(0),
		SecondChoice: at(1),
		ThirdChoice:  at(2),
	}
}

// Client searches the drugs.com pill identifier.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient creates a Client. baseURL is the site root, e.g.
// https://www.drugs.com.
func NewClient(c *http.Client, baseURL string, logger *zap.Logger) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{http: c, baseURL: strings.TrimRight(baseURL, "/"), logger: logging.OrNop(logger)}
}

// SearchURL builds the search URL. The values are embedded as given, not
// query-escaped.
func (c *Client) SearchURL(imprint, color, shape string) string {
	return httpx.Requote(fmt.Sprintf("%s/imprints.php?imprint=%s&color=%s&shape=%s", c.baseURL, imprint, color, shape))
}

// Lookup searches by imprint, color and shape. A non-200 page is logged and
// yields a Match with every choice NotAvailable; only transport and parse
// failures are returned as errors.
func (c *Client) Lookup(ctx context.Context, imprint, color, shape string) (Match, error) {
	u := c.SearchURL(imprint, color, shape)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Match{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(upstream, 0)
		return Match{}, fmt.Errorf("failed to fetch imprint search: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(upstream, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("error fetching imprint search page",
			zap.Int("status", resp.StatusCode),
			zap.String("url", u))
		return NewMatch(imprint, color, shape, nil), nil
	}

	choices, err := ParseChoices(resp.Body)
	if err != nil {
		return Match{}, err
	}

	if len(choices) > 0 {
		c.logger.Info("found pill information", zap.Int("choices", len(choices)))
	} else {
		c.logger.Info("no pill details found using the current parsing strategy", zap.String("url", u))
	}

	return NewMatch(imprint, color, shape, choices), nil
}
