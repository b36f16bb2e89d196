package identify

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"pillscan/internal/scraper"
	"pillscan/internal/sites/imprint"
	"pillscan/internal/sites/pill"
)

func init() {
	scraper.Register(&IdentifyScraper{})
}

// IdentifyScraper runs the full image to drug candidates pipeline.
type IdentifyScraper struct {
	// Dial overrides how the prediction client is created.
	Dial func(ctx context.Context, opts scraper.Options) (*pill.Client, error)
}

func (s *IdentifyScraper) Name() string { return "pill.identify" }

func (s *IdentifyScraper) Scrape(ctx context.Context, target string, opts scraper.Options) (scraper.Content, error) {
	image, err := pill.ReadImage(target, opts)
	if err != nil {
		return nil, err
	}

	matcher, err := imprint.ClientFromOptions(opts)
	if err != nil {
		return nil, err
	}

	dial := s.Dial
	if dial == nil {
		dial = pill.DialFromOptions
	}
	predictor, err := dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer predictor.Close()

	res, err := NewPipeline(predictor, matcher, opts.Log()).Run(ctx, image)
	if err != nil {
		return nil, err
	}
	return &ResultContent{source: target, result: res}, nil
}

// ResultContent renders a Result.
type ResultContent struct {
	source string
	result Result
}

// Result returns the wrapped value.
func (c *ResultContent) Result() Result { return c.result }

func (c *ResultContent) parts() (*pill.FeaturesContent, *imprint.MatchContent) {
	return pill.NewFeaturesContent(c.source, c.result.Features), imprint.NewMatchContent("", c.result.Match)
}

func (c *ResultContent) ToText() (string, error) {
	f, m := c.parts()
	ft, err := f.ToText()
	if err != nil {
		return "", err
	}
	mt, err := m.ToText()
	if err != nil {
		return "", err
	}
	return ft + "\n" + mt, nil
}

func (c *ResultContent) ToMarkdown() (string, error) {
	f, m := c.parts()
	fm, err := f.ToMarkdown()
	if err != nil {
		return "", err
	}
	mm, err := m.ToMarkdown()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(fm, "\n") + "\n\n" + mm, nil
}

func (c *ResultContent) ToHTML() (string, error) {
	f, m := c.parts()
	fh, err := f.ToHTML()
	if err != nil {
		return "", err
	}
	mh, err := m.ToHTML()
	if err != nil {
		return "", err
	}
	return fh + mh, nil
}

func (c *ResultContent) ToJSON() ([]byte, error) {
	return json.Marshal(c.result)
}

func (c *ResultContent) ToCSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Imprint", "Color", "Shape", "1st choice", "2nd choice", "3rd choice"})
	f := c.result.Features
	_ = w.Write(append([]string{f.Imprint, f.Color, f.Shape}, c.result.Match.Choices()...))
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.String(), nil
}
