package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls how the browser process is launched.
type Config struct {
	ProxyURL string
	Headless bool
	// NavTimeout bounds a single navigation. Zero means 30s.
	NavTimeout time.Duration
}

// Browser wraps a launched rod browser and its launcher process.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// New launches a browser process and connects to it.
func New(cfg Config) (*Browser, error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{
		browser:  b,
		launcher: l,
	}, nil
}

// NewPage opens a blank page with a desktop user agent and the webdriver
// flag hidden.
func (b *Browser) NewPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent})
	_, _ = page.EvalOnNewDocument(`Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`)
	return page, nil
}

// Close closes the browser and kills the launcher process.
func (b *Browser) Close() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			if b.launcher != nil {
				b.launcher.Kill()
			}
			return err
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return nil
}

// Session is a single page in a browser it owns. Closing the session tears
// down the whole browser.
type Session struct {
	browser    *Browser
	page       *rod.Page
	navTimeout time.Duration
}

// OpenSession launches a dedicated browser and opens one page in it.
func OpenSession(ctx context.Context, cfg Config) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := New(cfg)
	if err != nil {
		return nil, err
	}

	page, err := b.NewPage()
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	timeout := cfg.NavTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Session{browser: b, page: page, navTimeout: timeout}, nil
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.navTimeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

// URL returns the page's current URL, which reflects client-side redirects.
func (s *Session) URL() (string, error) {
	info, err := s.page.Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page info: %w", err)
	}
	return info.URL, nil
}

// Close closes the page and the browser.
func (s *Session) Close() error {
	if s.page != nil {
		_ = s.page.Close()
	}
	return s.browser.Close()
}
