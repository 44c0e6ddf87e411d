// Package flightaware fetches FlightAware airport boards and aircraft history
// pages and extracts their table rows.
package flightaware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"flightinfo/internal/flight"
	"flightinfo/internal/metrics"
)

const (
	// DefaultBaseURL is the public FlightAware site.
	DefaultBaseURL = "https://www.flightaware.com"

	defaultTimeout = 15 * time.Second

	// Retry settings.
	defaultMaxRetries     = 2
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	backoffFactor         = 2.0

	// Endpoint labels for metrics and logs.
	endpointDepartures = "departures"
	endpointHistory    = "history"
)

// DefaultHeaders is the browser-like header set sent with every request.
var DefaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/91.0.4472.124 Safari/537.36",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
}

// ErrUpstreamStatus is matched by every StatusError.
var ErrUpstreamStatus = errors.New("unexpected upstream status")

// StatusError reports an upstream response other than 200 OK.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrUpstreamStatus }

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the site root (useful for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request timeout. A client passed to WithHTTPClient
// is copied, not modified.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

// WithHeaders overrides individual request headers.
func WithHeaders(h map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range h {
			if v != "" {
				c.headers[k] = v
			}
		}
	}
}

// WithRateLimit caps outbound requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the retry budget and the exponential backoff bounds.
func WithRetry(maxRetries int, initial, maxBackoff time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if initial > 0 {
			c.initialBackoff = initial
		}
		if maxBackoff > 0 {
			c.maxBackoff = maxBackoff
		}
	}
}

// WithMetrics records fetch latency and retries.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// Client fetches FlightAware pages.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	headers        map[string]string
	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	metrics        *metrics.Metrics
	log            zerolog.Logger
}

// NewClient creates a client with the default headers, a 15 second request
// timeout and two retries.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        DefaultBaseURL,
		httpClient:     &http.Client{Timeout: defaultTimeout},
		headers:        make(map[string]string, len(DefaultHeaders)),
		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		log:            zerolog.Nop(),
	}
	for k, v := range DefaultHeaders {
		c.headers[k] = v
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// DeparturesURL returns the airport page holding the departures board.
func (c *Client) DeparturesURL(airport string) string {
	return c.baseURL + "/live/airport/" + url.PathEscape(airport)
}

// HistoryURL returns the flight history page of an aircraft.
func (c *Client) HistoryURL(ident string) string {
	return c.baseURL + "/live/flight/" + url.PathEscape(ident) + "/history"
}

// Departures fetches the departures board of airport. The page URL is
// returned even on error.
func (c *Client) Departures(ctx context.Context, airport string) ([]flight.RawLegRow, string, error) {
	u := c.DeparturesURL(airport)
	doc, err := c.fetchWithRetry(ctx, endpointDepartures, u)
	if err != nil {
		return nil, u, err
	}
	rows, err := ExtractDepartures(doc)
	return rows, u, err
}

// History fetches the flight history table of an aircraft. The page URL is
// returned even on error.
func (c *Client) History(ctx context.Context, ident string) ([]flight.RawLegRow, string, error) {
	u := c.HistoryURL(ident)
	doc, err := c.fetchWithRetry(ctx, endpointHistory, u)
	if err != nil {
		return nil, u, err
	}
	rows, err := ExtractHistory(doc)
	return rows, u, err
}

// fetchWithRetry fetches u, retrying transport errors, 429 and 5xx responses
// with capped exponential backoff.
func (c *Client) fetchWithRetry(ctx context.Context, endpoint, u string) (*goquery.Document, error) {
	var lastErr error
	backoff := c.initialBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.Retry(endpoint)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
		}

		start := time.Now()
		doc, err := c.fetch(ctx, u)
		c.metrics.ObserveUpstream(endpoint, time.Since(start))
		if err == nil {
			return doc, nil
		}
		lastErr = err

		// Don't retry on context cancellation or permanent failures.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !temporary(err) {
			return nil, err
		}

		c.log.Debug().Err(err).Str("url", u).Int("attempt", attempt+1).Msg("upstream fetch failed")
	}

	return nil, fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) fetch(ctx context.Context, u string) (*goquery.Document, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: u}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return doc, nil
}

// temporary reports whether err may succeed on retry. Status errors decide for
// themselves; anything else came from the transport.
func temporary(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
