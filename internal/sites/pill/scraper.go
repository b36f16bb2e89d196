package pill

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"pillscan/internal/scraper"
)

func init() {
	scraper.Register(&FeaturesScraper{})
}

// FeaturesScraper extracts imprint, color and shape from a pill image.
// The target is an image path, or a label when opts.Body carries the image.
type FeaturesScraper struct {
	// Dial overrides how the prediction client is created.
	Dial func(ctx context.Context, opts scraper.Options) (*Client, error)
}

func (s *FeaturesScraper) Name() string { return "pill.features" }

func (s *FeaturesScraper) Scrape(ctx context.Context, target string, opts scraper.Options) (scraper.Content, error) {
	image, err := ReadImage(target, opts)
	if err != nil {
		return nil, err
	}

	client, err := s.dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	features, err := client.Extract(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("failed to extract pill features: %w", err)
	}

	opts.Log().Info("pill features extracted",
		zap.String("imprint", features.Imprint),
		zap.String("color", features.Color),
		zap.String("shape", features.Shape))

	return NewFeaturesContent(target, features), nil
}

func (s *FeaturesScraper) dial(ctx context.Context, opts scraper.Options) (*Client, error) {
	if s.Dial != nil {
		return s.Dial(ctx, opts)
	}
	return DialFromOptions(ctx, opts)
}

// DialFromOptions connects to the prediction endpoint configured in opts.
func DialFromOptions(ctx context.Context, opts scraper.Options) (*Client, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("configuration is required for pill feature extraction")
	}
	return Dial(ctx, opts.Config, opts.Log())
}

// ReadImage returns opts.Body when set, otherwise the contents of the file
// named by target. Remote callers must send the image in opts.Body.
func ReadImage(target string, opts scraper.Options) ([]byte, error) {
	if len(opts.Body) > 0 {
		return opts.Body, nil
	}
	if opts.Remote {
		return nil, fmt.Errorf("%w: the image must be sent in the request body", scraper.ErrMissingInput)
	}
	if target == "" {
		return nil, fmt.Errorf("%w: an image path is required", scraper.ErrMissingInput)
	}
	image, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("image %s is empty", target)
	}
	return image, nil
}
