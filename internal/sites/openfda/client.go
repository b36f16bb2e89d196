// Package openfda queries the openFDA drug adverse event API.
package openfda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"pillscan/internal/httpx"
	"pillscan/internal/logging"
	"pillscan/internal/metrics"
)

// DefaultLimit is the number of event reports requested per lookup.
const DefaultLimit = 10

const upstream = "openfda.events"

type eventResponse struct {
	Results []struct {
		Patient struct {
			Reaction []struct {
				ReactionMeddraPT *string `json:"reactionmeddrapt"`
			} `json:"reaction"`
		} `json:"patient"`
	} `json:"results"`
}

// ParseReactions returns the distinct reaction terms in an event response,
// sorted.
func ParseReactions(r io.Reader) ([]string, error) {
	var resp eventResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode event response: %w", err)
	}

	seen := make(map[string]struct{})
	for _, event := range resp.Results {
		for _, reaction := range event.Patient.Reaction {
			if reaction.ReactionMeddraPT == nil {
				continue
			}
			seen[*reaction.ReactionMeddraPT] = struct{}{}
		}
	}

	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms, nil
}

// Client fetches adverse event reports.
type Client struct {
	http    *http.Client
	baseURL string
	limit   int
	logger  *zap.Logger
}

// NewClient creates a Client. baseURL is the API root, e.g.
// https://api.fda.gov.
func NewClient(c *http.Client, baseURL string, logger *zap.Logger) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{
		http:    c,
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   DefaultLimit,
		logger:  logging.OrNop(logger),
	}
}

// EventsURL builds the query URL. The drug name is embedded verbatim between
// literal quotes.
func (c *Client) EventsURL(drugName string) string {
	return httpx.Requote(fmt.Sprintf(`%s/drug/event.json?search=patient.drug.medicinalproduct:"%s"&limit=%d`, c.baseURL, drugName, c.limit))
}

// SideEffects returns the distinct reactions reported for drugName in the
// first page of results. A non-200 response is logged and yields an empty
// list.
func (c *Client) SideEffects(ctx context.Context, drugName string) ([]string, error) {
	u := c.EventsURL(drugName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(upstream, 0)
		return nil, fmt.Errorf("failed to fetch side effects: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(upstream, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("error fetching side effects",
			zap.Int("status", resp.StatusCode),
			zap.String("drug", drugName))
		return []string{}, nil
	}

	terms, err := ParseReactions(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("side effects fetched", zap.String("drug", drugName), zap.Int("count", len(terms)))
	return terms, nil
}
