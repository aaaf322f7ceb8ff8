// Package transport fetches remote documents and archives over HTTP(S),
// following redirects manually up to a fixed hop count and buffering the
// whole body in memory.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/GoCodeAlone/marketplace/cache"
)

// DefaultMaxRedirects bounds the redirect chase when no option overrides it.
const DefaultMaxRedirects = 10

var (
	// ErrUnsupportedScheme is returned for URLs that are neither http nor https.
	ErrUnsupportedScheme = errors.New("transport: unsupported URL scheme")
	// ErrTooManyRedirects is returned when the redirect chain exceeds the hop cap.
	ErrTooManyRedirects = errors.New("transport: too many redirects")
)

// StatusError reports a final response outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: HTTP %d from %s", e.StatusCode, e.URL)
}

// Client performs GET requests with a bounded manual redirect chase.
type Client struct {
	http         *http.Client
	maxRedirects int
	limiter      *rate.Limiter
	cache        cache.Store
	userAgent    string
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its redirect policy is
// overridden so redirects surface to the chase loop.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			cp := *hc
			c.http = &cp
		}
	}
}

// WithMaxRedirects sets the redirect hop cap.
func WithMaxRedirects(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// WithRateLimit throttles outgoing requests, redirect hops included.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithCache enables RequestCached lookups against store.
func WithCache(store cache.Store) Option {
	return func(c *Client) { c.cache = store }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client. The default HTTP client is instrumented with otelhttp.
func New(opts ...Option) *Client {
	c := &Client{
		http:         &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		maxRedirects: DefaultMaxRedirects,
		userAgent:    "marketctl",
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// Request fetches rawURL and returns the full body of the final response.
func (c *Client) Request(ctx context.Context, rawURL string) ([]byte, error) {
	current := rawURL
	for hops := 0; ; hops++ {
		u, err := url.Parse(current)
		if err != nil {
			return nil, fmt.Errorf("transport: parse %q: %w", current, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, current)
		}
		resp, err := c.do(ctx, u)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			loc := resp.Header.Get("Location")
			drain(resp)
			if loc != "" {
				if hops >= c.maxRedirects {
					return nil, fmt.Errorf("%w: %s after %d hops", ErrTooManyRedirects, rawURL, hops)
				}
				next, err := u.Parse(loc)
				if err != nil {
					return nil, fmt.Errorf("transport: bad redirect location %q: %w", loc, err)
				}
				c.logger.Debug("following redirect", "from", current, "to", next.String(), "status", resp.StatusCode)
				current = next.String()
				continue
			}
			return nil, &StatusError{URL: current, StatusCode: resp.StatusCode}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			drain(resp)
			return nil, &StatusError{URL: current, StatusCode: resp.StatusCode}
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("transport: read body from %s: %w", current, err)
		}
		return body, nil
	}
}

type freshKey struct{}

// Fresh marks ctx so cached requests made with it skip the cache lookup.
// The response still replaces the cached copy.
func Fresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshKey{}, true)
}

// IsFresh reports whether ctx was marked by Fresh.
func IsFresh(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshKey{}).(bool)
	return fresh
}

// RequestCached is Request with a read-through lookup in the configured
// cache. Cache failures are logged and fall back to the network. A context
// marked by Fresh goes straight to the network.
func (c *Client) RequestCached(ctx context.Context, rawURL string) ([]byte, error) {
	if c.cache == nil {
		return c.Request(ctx, rawURL)
	}
	if !IsFresh(ctx) {
		body, err := c.cache.Get(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn("response cache lookup failed", "url", rawURL, "err", err)
		}
	}
	body, err := c.Request(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, rawURL, body); err != nil {
		c.logger.Warn("response cache store failed", "url", rawURL, "err", err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, u *url.URL) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("transport: rate limit wait: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: get %s: %w", u.Redacted(), err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// Cached is a view of a Client whose Request reads through the response cache.
type Cached struct {
	c *Client
}

// Cached returns the read-through view of c.
func (c *Client) Cached() *Cached { return &Cached{c: c} }

// Request implements the catalog fetcher interface.
func (v *Cached) Request(ctx context.Context, rawURL string) ([]byte, error) {
	return v.c.RequestCached(ctx, rawURL)
}
