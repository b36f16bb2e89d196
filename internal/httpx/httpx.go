// Package httpx holds the HTTP client plumbing shared by the site clients.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultUserAgent is sent when a request carries no User-Agent of its own.
// drugs.com answers the Go default agent with a bot challenge.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Transport sets a browser User-Agent on outgoing requests.
type Transport struct {
	Base      http.RoundTripper
	UserAgent string
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Header.Get("User-Agent") != "" {
		return base.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	ua := t.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	r.Header.Set("User-Agent", ua)
	return base.RoundTrip(r)
}

// NewClient builds the client used for page and API fetches. proxyURL may be
// empty. There is no retry: a failed request is reported to the caller as is.
func NewClient(timeout time.Duration, proxyURL string) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
		}
		base.Proxy = http.ProxyURL(u)
	}

	return &http.Client{
		Transport: &Transport{Base: base},
		Timeout:   timeout,
	}, nil
}

// HTTPStatusError reports a response outside the 2xx range.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// IsSuccess reports whether code is 2xx.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}

// Requote percent-encodes the bytes of rawURL that cannot appear in a request
// line, leaving reserved characters, existing escapes and the query structure
// untouched. Values embedded verbatim (quotes, spaces) survive the trip this
// way without being query-escaped.
func Requote(rawURL string) string {
	const hex = "0123456789ABCDEF"

	var sb strings.Builder
	sb.Grow(len(rawURL))
	for i := 0; i < len(rawURL); i++ {
		c := rawURL[i]
		if keepByte(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0f])
	}
	return sb.String()
}

func keepByte(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-._~!#$%&'()*+,/:;=?@[]", c) >= 0
}
