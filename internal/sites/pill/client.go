package pill

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"pillscan/internal/config"
	"pillscan/internal/logging"
)

// Prompt is the instruction sent alongside the image.
const Prompt = "Get the color, shape, and imprint of this pill."

const defaultMimeType = "image/png"

// Predictor is the slice of the Vertex AI prediction client pillscan uses.
type Predictor interface {
	Predict(ctx context.Context, req *aiplatformpb.PredictRequest, opts ...gax.CallOption) (*aiplatformpb.PredictResponse, error)
}

// Client asks a hosted model to describe a pill image.
type Client struct {
	predictor Predictor
	endpoint  string
	logger    *zap.Logger
	closer    func() error
}

// NewClient wraps an existing predictor. endpoint is the fully qualified
// endpoint resource name.
func NewClient(p Predictor, endpoint string, logger *zap.Logger) *Client {
	return &Client{predictor: p, endpoint: endpoint, logger: logging.OrNop(logger)}
}

// Dial connects to the prediction endpoint named in cfg. The returned client
// must be closed.
func Dial(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.ValidatePrediction(); err != nil {
		return nil, err
	}

	pc, err := aiplatform.NewPredictionClient(ctx,
		option.WithEndpoint(cfg.PredictionHost()),
		option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction client: %w", err)
	}

	c := NewClient(pc, cfg.EndpointName(), logger)
	c.closer = pc.Close
	return c, nil
}

// Close releases the underlying connection, if the client owns one.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Predict sends one image and returns the first prediction's text, or "" when
// the endpoint returned no predictions.
func (c *Client) Predict(ctx context.Context, image []byte) (string, error) {
	instance, err := buildInstance(image)
	if err != nil {
		return "", err
	}

	resp, err := c.predictor.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:  c.endpoint,
		Instances: []*structpb.Value{instance},
	})
	if err != nil {
		return "", fmt.Errorf("failed to predict: %w", err)
	}

	predictions := resp.GetPredictions()
	if len(predictions) == 0 {
		c.logger.Warn("prediction response has no predictions", zap.String("endpoint", c.endpoint))
		return "", nil
	}

	text := predictions[0].GetStringValue()
	c.logger.Debug("prediction received", zap.String("text", text), zap.Int("predictions", len(predictions)))
	return text, nil
}

// Extract predicts and parses the pill's features.
func (c *Client) Extract(ctx context.Context, image []byte) (Features, error) {
	text, err := c.Predict(ctx, image)
	if err != nil {
		return Features{}, err
	}
	return ParseFeatures(text), nil
}

func buildInstance(image []byte) (*structpb.Value, error) {
	instance, err := structpb.NewValue(map[string]interface{}{
		"prompt": []interface{}{
			map[string]interface{}{
				"mimeType": detectMimeType(image),
				"data":     base64.StdEncoding.EncodeToString(image),
			},
			map[string]interface{}{
				"text": Prompt,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction instance: %w", err)
	}
	return instance, nil
}

func detectMimeType(image []byte) string {
	ct := http.DetectContentType(image)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return defaultMimeType
}
