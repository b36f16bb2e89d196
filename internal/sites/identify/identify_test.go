package identify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pillscan/internal/scraper"
	"pillscan/internal/sites/imprint"
	"pillscan/internal/sites/pill"
)

type stubExtractor struct {
	features pill.Features
	err      error
}

func (s stubExtractor) Extract(context.Context, []byte) (pill.Features, error) {
	return s.features, s.err
}

type stubMatcher struct {
	calls   int
	choices []string
	err     error
}

func (s *stubMatcher) Lookup(_ context.Context, imp, color, shape string) (imprint.Match, error) {
	s.calls++
	if s.err != nil {
		return imprint.Match{}, s.err
	}
	return imprint.NewMatch(imp, color, shape, s.choices), nil
}

func TestPipeline_Run(t *testing.T) {
	m := &stubMatcher{choices: []string{"Acetaminophen 500 mg"}}
	p := NewPipeline(stubExtractor{features: pill.Features{Imprint: "L484", Color: "white", Shape: "round"}}, m, zaptest.NewLogger(t))

	res, err := p.Run(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 1, m.calls)
	assert.Equal(t, "L484", res.Match.Imprint)
	assert.Equal(t, "Acetaminophen 500 mg", res.Match.FirstChoice)
	assert.Equal(t, imprint.NotAvailable, res.Match.ThirdChoice)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"features":{"imprint":"L484","color":"white","shape":"round"}`)
}

func TestPipeline_EmptyImprintSkipsLookup(t *testing.T) {
	m := &stubMatcher{}
	p := NewPipeline(stubExtractor{features: pill.ParseFeatures("")}, m, nil)

	res, err := p.Run(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 0, m.calls)
	assert.Equal(t, []string{imprint.NotAvailable, imprint.NotAvailable, imprint.NotAvailable}, res.Match.Choices())
}

func TestPipeline_Errors(t *testing.T) {
	boom := errors.New("boom")

	_, err := NewPipeline(stubExtractor{err: boom}, &stubMatcher{}, nil).Run(context.Background(), nil)
	assert.ErrorIs(t, err, boom)

	_, err = NewPipeline(stubExtractor{features: pill.Features{Imprint: "X"}}, &stubMatcher{err: boom}, nil).Run(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestResultContent(t *testing.T) {
	c := &ResultContent{source: "pill.png", result: Result{
		Features: pill.Features{Imprint: "L484", Color: "white", Shape: "round"},
		Match:    imprint.NewMatch("L484", "white", "round", []string{"A", "B"}),
	}}

	csvOut, err := c.ToCSV()
	require.NoError(t, err)
	assert.Equal(t, "Imprint,Color,Shape,1st choice,2nd choice,3rd choice\nL484,white,round,A,B,N/A\n", csvOut)

	text, err := c.ToText()
	require.NoError(t, err)
	assert.Contains(t, text, "Imprint: L484")
	assert.Contains(t, text, "2nd choice: B")

	htmlOut, err := c.ToHTML()
	require.NoError(t, err)
	assert.Contains(t, htmlOut, "<dt>Imprint</dt><dd>L484</dd>")
	assert.Contains(t, htmlOut, "<li>B</li>")
}

func TestIdentifyScraper_Registered(t *testing.T) {
	s, ok := scraper.Get("pill.identify")
	require.True(t, ok)

	_, err := s.Scrape(context.Background(), "", scraper.Options{})
	assert.Error(t, err)
}
