// Package fetcher owns the outbound HTTP exchange for metadata
// retrieval. Redirects are never followed by the transport: the loop
// here decides each hop and re-runs the URL security validator against
// every redirect target before connecting, which is the defense against
// redirect-based SSRF (an innocuous URL 301ing to an internal address).
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aloe-labs/linkguard/internal/urlcheck"
	"go.uber.org/zap"
)

const (
	// DefaultTimeoutPerHop bounds each hop's connect + exchange. The
	// final hop's deadline also caps the body read, so a slow-drip
	// server cannot hold a worker past the budget.
	DefaultTimeoutPerHop = 10 * time.Second
	// DefaultMaxRedirects is how many hops may precede the terminal
	// response.
	DefaultMaxRedirects = 5
	// DefaultUserAgent identifies our outbound requests.
	DefaultUserAgent = "Aloe-Bookmark-Bot/1.0"
	// DefaultAccept restricts responses to page content we can parse.
	DefaultAccept = "text/html,application/xhtml+xml"

	// Redirect bodies are drained up to this many bytes so the
	// connection can be reused, then discarded.
	redirectBodyDrainLimit = 4 * 1024
)

var (
	// ErrTooManyRedirects means the chain exceeded the hop budget.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrMissingRedirectLocation means a 3xx arrived without a
	// Location header. Fatal, not retried.
	ErrMissingRedirectLocation = errors.New("redirect response missing Location header")
	// ErrRequestTimeout means a hop was aborted by its deadline.
	ErrRequestTimeout = errors.New("request timed out")
	// ErrFetchFailure wraps transport-level errors (connect refused,
	// TLS failure, DNS failure at connect time).
	ErrFetchFailure = errors.New("fetch failed")
)

// ValidationError carries a validator rejection from any hop of the
// chain, propagated verbatim to the caller.
type ValidationError struct {
	URL     string
	Outcome urlcheck.Outcome
}

func (e *ValidationError) Error() string {
	return "url rejected: " + e.Outcome.Reason
}

// URLValidator is the per-hop security gate.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) urlcheck.Outcome
}

// Config holds fetch policy. Zero fields take the package defaults.
type Config struct {
	TimeoutPerHop time.Duration
	MaxRedirects  int
	UserAgent     string
	Accept        string
}

func (c Config) withDefaults() Config {
	if c.TimeoutPerHop <= 0 {
		c.TimeoutPerHop = DefaultTimeoutPerHop
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Accept == "" {
		c.Accept = DefaultAccept
	}
	return c
}

// Result is a completed fetch. Response.Body is open; closing it
// releases the final hop's resources, so callers must close it on
// every path.
type Result struct {
	Response      *http.Response
	FinalURL      string
	RedirectCount int
}

// SecureFetcher performs validated, redirect-controlled fetches.
type SecureFetcher struct {
	client    *http.Client
	validator URLValidator
	cfg       Config
	logger    *zap.Logger
}

// NewSecureFetcher creates a fetcher around the given validator. The
// underlying client is built with redirect-following disabled; only
// the loop in Fetch advances through a chain.
func NewSecureFetcher(validator URLValidator, cfg Config, logger *zap.Logger) *SecureFetcher {
	return &SecureFetcher{
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		validator: validator,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Fetch validates rawURL, then walks the redirect chain up to
// MaxRedirects hops, re-validating every redirect target before
// connecting to it. Each hop gets a fresh TimeoutPerHop deadline.
// Returns the terminal response, the URL that produced it, and the hop
// count.
func (f *SecureFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if out := f.validator.Validate(ctx, rawURL); !out.Allowed {
		return nil, &ValidationError{URL: rawURL, Outcome: out}
	}

	currentURL := rawURL
	redirectCount := 0

	for redirectCount <= f.cfg.MaxRedirects {
		resp, cancel, err := f.doHop(ctx, currentURL)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			// Terminal response. The hop context stays alive so its
			// deadline keeps bounding the body read; closing the body
			// releases it.
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return &Result{
				Response:      resp,
				FinalURL:      currentURL,
				RedirectCount: redirectCount,
			}, nil
		}

		location := resp.Header.Get("Location")
		redirectURL, err := resolveRedirect(resp, location)
		drainAndClose(resp.Body)
		cancel()
		if err != nil {
			return nil, err
		}

		redirectCount++
		if redirectCount > f.cfg.MaxRedirects {
			return nil, fmt.Errorf("%w (max %d)", ErrTooManyRedirects, f.cfg.MaxRedirects)
		}

		// Mandatory re-validation of the new target before the next
		// connection.
		if out := f.validator.Validate(ctx, redirectURL); !out.Allowed {
			f.logger.Warn("redirect target rejected",
				zap.String("from", currentURL),
				zap.String("to", redirectURL),
				zap.String("category", out.Category.String()),
			)
			return nil, &ValidationError{URL: redirectURL, Outcome: out}
		}

		f.logger.Debug("following redirect",
			zap.String("from", currentURL),
			zap.String("to", redirectURL),
			zap.Int("hop", redirectCount),
		)
		currentURL = redirectURL
	}

	// The loop always returns from within; kept for completeness.
	return nil, ErrTooManyRedirects
}

// doHop performs one request with its own deadline. On success the
// returned cancel must be called once the response is finished with.
func (f *SecureFetcher) doHop(ctx context.Context, rawURL string) (*http.Response, context.CancelFunc, error) {
	hopCtx, cancel := context.WithTimeout(ctx, f.cfg.TimeoutPerHop)

	req, err := http.NewRequestWithContext(hopCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", f.cfg.Accept)

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			// Caller-initiated cancellation, not a hop timeout.
			return nil, nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, ErrRequestTimeout
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	return resp, cancel, nil
}

// resolveRedirect turns a Location header into an absolute URL
// resolved against the request that produced the redirect.
func resolveRedirect(resp *http.Response, location string) (string, error) {
	if location == "" {
		return "", ErrMissingRedirectLocation
	}
	u, err := resp.Request.URL.Parse(location)
	if err != nil {
		return "", fmt.Errorf("%w: unparseable Location", ErrMissingRedirectLocation)
	}
	return u.String(), nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, redirectBodyDrainLimit))
	_ = body.Close()
}

// cancelOnClose ties a hop's context cancel to the response body so no
// socket or timer outlives the caller's read.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
