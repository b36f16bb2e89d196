// Package identify chains feature extraction and the imprint search: a pill
// image in, candidate drugs out.
package identify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pillscan/internal/logging"
	"pillscan/internal/sites/imprint"
	"pillscan/internal/sites/pill"
)

// FeatureExtractor reads imprint, color and shape from an image.
type FeatureExtractor interface {
	Extract(ctx context.Context, image []byte) (pill.Features, error)
}

// Matcher searches drugs by their visible features.
type Matcher interface {
	Lookup(ctx context.Context, imp, color, shape string) (imprint.Match, error)
}

// Result carries both stages.
type Result struct {
	Features pill.Features `json:"features"`
	Match    imprint.Match `json:"match"`
}

// Pipeline runs extraction then lookup.
type Pipeline struct {
	extractor FeatureExtractor
	matcher   Matcher
	logger    *zap.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(e FeatureExtractor, m Matcher, logger *zap.Logger) *Pipeline {
	return &Pipeline{extractor: e, matcher: m, logger: logging.OrNop(logger)}
}

// Run identifies the pill in image. An image with no readable imprint skips
// the search and yields a Match with every choice unavailable.
func (p *Pipeline) Run(ctx context.Context, image []byte) (Result, error) {
	features, err := p.extractor.Extract(ctx, image)
	if err != nil {
		return Result{}, fmt.Errorf("failed to extract pill features: %w", err)
	}

	if features.Imprint == "" || features.Imprint == pill.NotAvailable {
		p.logger.Info("no imprint recognised, skipping search")
		return Result{
			Features: features,
			Match:    imprint.NewMatch(features.Imprint, features.Color, features.Shape, nil),
		}, nil
	}

	match, err := p.matcher.Lookup(ctx, features.Imprint, features.Color, features.Shape)
	if err != nil {
		return Result{}, fmt.Errorf("failed to look up imprint: %w", err)
	}
	return Result{Features: features, Match: match}, nil
}
