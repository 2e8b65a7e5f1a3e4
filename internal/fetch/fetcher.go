// internal/fetch/fetcher.go
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lotlens/backend/pkg/logger"
)

// Error is a fetch failure after all retries were exhausted. StatusCode is
// zero for transport-level failures.
type Error struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempts", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v after %d attempts", e.URL, e.Err, e.Attempts)
}

func (e *Error) Unwrap() error { return e.Err }

// RateLimited reports whether the final failure was an HTTP 429.
func (e *Error) RateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// Config tunes a Fetcher. Zero values fall back to sane defaults.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	MaxRetries    int
	RetryBase     time.Duration // exponential backoff base, doubles per attempt
	RateLimitWait time.Duration // fixed wait after a 429
}

// Fetcher performs retrying, rate-limit-aware HTTP GETs with browser-like
// headers. All waits go through sleep so tests can run without real delays.
type Fetcher struct {
	client        *http.Client
	userAgent     string
	maxRetries    int
	retryBase     time.Duration
	rateLimitWait time.Duration
	log           *logger.Logger
	sleep         func(context.Context, time.Duration) error
}

func New(cfg Config, log *logger.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RateLimitWait == 0 {
		cfg.RateLimitWait = 60 * time.Second
	}
	return &Fetcher{
		client:        &http.Client{Timeout: cfg.Timeout},
		userAgent:     cfg.UserAgent,
		maxRetries:    cfg.MaxRetries,
		retryBase:     cfg.RetryBase,
		rateLimitWait: cfg.RateLimitWait,
		log:           log,
		sleep:         sleepCtx,
	}
}

// Fetch GETs url and returns the body. Transient failures are retried:
// 429 with a long fixed wait, everything else with exponential backoff.
// After the retry ceiling the error propagates so the caller can decide
// whether this URL was fatal or skippable.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr *Error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			wait := f.retryBase << attempt
			if lastErr.RateLimited() {
				wait = f.rateLimitWait
			}
			f.log.Warn("fetch %s failed (attempt %d/%d), retrying in %v: %v",
				url, attempt, f.maxRetries, wait, lastErr)
			if err := f.sleep(ctx, wait); err != nil {
				return "", err
			}
		}

		body, ferr := f.fetchOnce(ctx, url)
		if ferr == nil {
			return body, nil
		}
		ferr.Attempts = attempt + 1
		lastErr = ferr
	}

	return "", lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (string, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &Error{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", &Error{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{URL: url, Err: err}
	}
	return string(body), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
