package interactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pillscan/internal/browser"
	"pillscan/internal/httpx"
	"pillscan/internal/logging"
	"pillscan/internal/metrics"
)

const drugListMarker = "?drug_list="

var (
	// ErrResolveTimeout is returned when the search page never redirected
	// within the allowed attempts.
	ErrResolveTimeout = errors.New("drug ID resolution timed out")
	// ErrNoDrugID is returned when the page redirected to a URL without a
	// drug list.
	ErrNoDrugID = errors.New("redirected URL carries no drug ID")
)

// Navigator is one browser page. Each resolution attempt opens and closes
// its own.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	URL() (string, error)
	Close() error
}

// OpenFunc opens a fresh Navigator.
type OpenFunc func(ctx context.Context) (Navigator, error)

// BrowserOpener returns an OpenFunc that launches a dedicated rod browser
// per call.
func BrowserOpener(cfg browser.Config) OpenFunc {
	return func(ctx context.Context) (Navigator, error) {
		s, err := browser.OpenSession(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// RetryPolicy bounds resolution. Attempt n waits InitialDelay + (n-1)*Step.
type RetryPolicy struct {
	InitialDelay time.Duration
	Step         time.Duration
	MaxAttempts  int
}

// DefaultRetryPolicy waits 1s, 2s, 3s, 4s and 5s.
var DefaultRetryPolicy = RetryPolicy{InitialDelay: time.Second, Step: time.Second, MaxAttempts: 5}

func (p RetryPolicy) delay(attempt int) time.Duration {
	return p.InitialDelay + time.Duration(attempt-1)*p.Step
}

// Resolver maps drug names to drugs.com internal IDs by watching the
// interaction search page redirect.
type Resolver struct {
	open    OpenFunc
	baseURL string
	policy  RetryPolicy
	cache   IDCache
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache enables the ID cache.
func WithCache(c IDCache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) ResolverOption {
	return func(r *Resolver) { r.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver against baseURL.
func NewResolver(open OpenFunc, baseURL string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		open:    open,
		baseURL: strings.TrimRight(baseURL, "/"),
		policy:  DefaultRetryPolicy,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNop(r.logger)
	if r.policy.MaxAttempts < 1 {
		r.policy.MaxAttempts = 1
	}
	return r
}

// SearchURL returns the interaction search page for drugName.
func (r *Resolver) SearchURL(drugName string) string {
	return httpx.Requote(r.baseURL + "/interaction/list/?searchterm=" + drugName)
}

// Resolve returns the site ID for drugName. It gives up with
// ErrResolveTimeout after the policy's last attempt.
func (r *Resolver) Resolve(ctx context.Context, drugName string) (string, error) {
	if r.cache != nil {
		id, ok, err := r.cache.Get(ctx, drugName)
		if err != nil {
			r.logger.Warn("drug ID cache read failed", zap.String("drug", drugName), zap.Error(err))
		} else if ok {
			r.logger.Debug("drug ID cache hit", zap.String("drug", drugName), zap.String("id", id))
			return id, nil
		}
	}

	searchURL := r.SearchURL(drugName)
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		delay := r.policy.delay(attempt)
		cur, changed, err := r.attempt(ctx, searchURL, delay)
		if err != nil {
			return "", err
		}
		if !changed {
			r.logger.Info("URL did not change, retrying",
				zap.String("drug", drugName),
				zap.Int("attempt", attempt),
				zap.Duration("waited", delay))
			continue
		}

		metrics.IDResolutionAttempts.Observe(float64(attempt))
		r.logger.Info("URL changed", zap.String("drug", drugName), zap.String("url", cur))

		_, id, found := strings.Cut(cur, drugListMarker)
		if !found {
			return "", fmt.Errorf("%w: %s", ErrNoDrugID, cur)
		}
		r.logger.Info("drug ID resolved", zap.String("drug", drugName), zap.String("id", id))

		if r.cache != nil {
			if err := r.cache.Set(ctx, drugName, id); err != nil {
				r.logger.Warn("drug ID cache write failed", zap.String("drug", drugName), zap.Error(err))
			}
		}
		return id, nil
	}

	return "", fmt.Errorf("%w: %q after %d attempts", ErrResolveTimeout, drugName, r.policy.MaxAttempts)
}

// attempt runs one acquire-navigate-wait-release cycle and reports the
// page URL after the wait and whether it differs from the one before it.
func (r *Resolver) attempt(ctx context.Context, searchURL string, delay time.Duration) (string, bool, error) {
	nav, err := r.open(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := nav.Close(); err != nil {
			r.logger.Debug("failed to close browser session", zap.Error(err))
		}
	}()

	if err := nav.Navigate(ctx, searchURL); err != nil {
		return "", false, fmt.Errorf("failed to open search page: %w", err)
	}
	prev, err := nav.URL()
	if err != nil {
		return "", false, err
	}

	if err := r.sleep(ctx, delay); err != nil {
		return "", false, err
	}

	cur, err := nav.URL()
	if err != nil {
		return "", false, err
	}
	return cur, cur != prev, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
