// Package fetchhttp provides the resilient content fetcher used by the
// discovery pipeline
package fetchhttp

import (
	"context"
	"io"
	"net/http"
	"time"

	"regtruth/internal/core/throttle"
	perr "regtruth/internal/platform/errors"
	"regtruth/internal/platform/logger"
	"regtruth/internal/services/discovery/domain"
)

const (
	defaultUA        = "regtruth-discovery"
	defaultTimeout   = 30 * time.Second
	defaultMaxBody   = 16 << 20 // 16 MiB
	defaultMaxRetry  = 2
	defaultRetryBase = 500 * time.Millisecond
)

// Options configures the Client
type Options struct {
	UserAgent string
	Timeout   time.Duration

	// MaxBodyBytes caps how much of a response body is read
	MaxBodyBytes int64

	// Retry config for transport-level and transient server failures.
	// Permanent client errors never retry; the circuit breaker above
	// handles sustained failure
	MaxRetries int
	RetryBase  time.Duration
}

// Client is a conditional-fetch HTTP client with bounded internal retries
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

var _ domain.FetcherPort = (*Client)(nil)

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBody
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("fetchhttp"),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Fetch issues one conditional GET. etag is optional and adds If-None-Match.
// Transient failures retry internally up to MaxRetries; the returned error
// carries a code the caller can classify with perr.Retryable
func (c *Client) Fetch(ctx context.Context, url, etag string) (domain.FetchResult, error) {
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return domain.FetchResult{}, ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return domain.FetchResult{}, perr.InvalidArgumentf("fetch: bad url %q: %v", url, err)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if !perr.IsRetryableNetwork(err) || !c.shouldRetry(attempts) {
				return domain.FetchResult{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "fetch %s", url)
			}
			back := throttle.Backoff(attempts, c.opts.RetryBase, 30*time.Second)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Str("url", url).
				Msg("transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		c.log.Debug().
			Str("url", url).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("fetch response")

		switch {
		case resp.StatusCode == http.StatusNotModified:
			_ = drainAndClose(resp.Body)
			return domain.FetchResult{
				Status:      resp.StatusCode,
				ETag:        etag,
				NotModified: true,
				FinalURL:    finalURL(resp, url),
			}, nil

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
			_ = resp.Body.Close()
			if err != nil {
				if c.shouldRetry(attempts) && perr.IsRetryableNetwork(err) {
					back := throttle.Backoff(attempts, c.opts.RetryBase, 30*time.Second)
					c.sleep(back)
					attempts++
					continue
				}
				return domain.FetchResult{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "fetch %s: read body", url)
			}
			return domain.FetchResult{
				Status:      resp.StatusCode,
				Body:        body,
				ContentType: resp.Header.Get("Content-Type"),
				ETag:        resp.Header.Get("ETag"),
				FinalURL:    finalURL(resp, url),
			}, nil

		case perr.RetryableStatus(resp.StatusCode):
			_ = drainAndClose(resp.Body)
			if !c.shouldRetry(attempts) {
				return domain.FetchResult{}, perr.Newf(
					perr.CodeForStatus(resp.StatusCode), "fetch %s: status %d", url, resp.StatusCode)
			}
			back := c.retryAfter(resp, attempts)
			c.log.Warn().Dur("retry_in", back).Int("status", resp.StatusCode).Str("url", url).
				Msg("transient status retrying")
			c.sleep(back)
			attempts++
			continue

		default:
			// permanent client error; read a small tail for diagnostics
			tail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return domain.FetchResult{}, perr.Newf(
				perr.CodeForStatus(resp.StatusCode),
				"fetch %s: status %d body %q", url, resp.StatusCode, string(tail))
		}
	}
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
}

// retryAfter honors a Retry-After seconds header when present
func (c *Client) retryAfter(resp *http.Response, attempt int) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if sec, err := time.ParseDuration(s + "s"); err == nil && sec > 0 {
			return sec
		}
	}
	return throttle.Backoff(attempt, c.opts.RetryBase, 30*time.Second)
}

func finalURL(resp *http.Response, fallback string) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return fallback
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
