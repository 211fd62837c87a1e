// Package fetch is the HTTP transport shared by every page format: a
// rate-limited client that retries throttled, failing and unreachable
// servers before giving up.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config configures the client. Zero fields take their defaults.
type Config struct {
	// Timeout bounds a single request attempt.
	Timeout time.Duration

	// RateLimit is the sustained requests per second across all callers.
	RateLimit float64

	// Burst is the number of requests allowed at once.
	Burst int

	// MaxRetries is the number of retries after the first attempt. Use
	// NoRetries to disable retrying, since zero takes the default.
	MaxRetries int

	// RetryWait is the base backoff between attempts.
	RetryWait time.Duration

	// MaxRetryWait caps backoff and Retry-After waits.
	MaxRetryWait time.Duration

	UserAgent string
}

// NoRetries as Config.MaxRetries makes every request a single attempt.
const NoRetries = -1

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		RateLimit:    20,
		Burst:        20,
		MaxRetries:   3,
		RetryWait:    time.Second,
		MaxRetryWait: 30 * time.Second,
		UserAgent:    "confpapers/1.0 (conference paper scraper)",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = d.RateLimit
	}
	if c.Burst == 0 {
		c.Burst = d.Burst
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryWait == 0 {
		c.RetryWait = d.RetryWait
	}
	if c.MaxRetryWait == 0 {
		c.MaxRetryWait = d.MaxRetryWait
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	return c
}

// TransportError is returned when a page could not be retrieved after all
// retries. StatusCode is 0 when no response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GET %s: server returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// Observer is told about every completed attempt. A request that never got
// a response is reported once with status 0.
type Observer func(statusCode int, elapsed time.Duration)

// Client fetches pages. It is safe for concurrent use; the rate limit is
// shared by all goroutines using the same Client.
type Client struct {
	http     *resty.Client
	limiter  *rate.Limiter
	config   Config
	logger   zerolog.Logger
	observer Observer
}

// NewClient creates a client with the given configuration.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	cfg = cfg.withDefaults()

	c := &Client{
		http:    resty.New(),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		config:  cfg,
		logger:  logger.With().Str("component", "fetch").Logger(),
	}

	c.http.SetLogger(restyLogger{c.logger})
	c.http.SetTimeout(cfg.Timeout)
	c.http.SetHeader("User-Agent", cfg.UserAgent)
	c.http.SetRetryCount(max(cfg.MaxRetries, 0))
	c.http.SetRetryWaitTime(cfg.RetryWait)
	c.http.SetRetryMaxWaitTime(cfg.MaxRetryWait)
	c.http.AddRetryCondition(shouldRetry)
	c.http.SetRetryAfter(retryAfter)
	c.http.AddRetryHook(c.onRetry)

	// Runs before every attempt, retries included.
	c.http.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return c.limiter.Wait(req.Context())
	})
	c.http.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		if c.observer != nil {
			c.observer(res.StatusCode(), res.Time())
		}
		return nil
	})
	// Runs once a request has failed without a response, after retries.
	c.http.OnError(func(req *resty.Request, _ error) {
		if c.observer == nil || req.Context().Err() != nil {
			return
		}
		var elapsed time.Duration
		if !req.Time.IsZero() {
			elapsed = time.Since(req.Time)
		}
		c.observer(0, elapsed)
	})

	return c
}

// SetObserver registers a callback for completed attempts. It must be
// called before the client is shared.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// Get returns the body of url. Any status other than 2xx after retries is a
// TransportError; so is a request that never got a response. Context
// cancellation is returned unwrapped.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	res, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{URL: url, Err: err}
	}

	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		return nil, &TransportError{
			URL:        url,
			StatusCode: res.StatusCode(),
			Err:        errors.New(res.Status()),
		}
	}

	return res.Body(), nil
}

func (c *Client) onRetry(res *resty.Response, err error) {
	event := c.logger.Warn()
	if res != nil && res.Request != nil {
		event = event.Str("url", res.Request.URL).Int("status", res.StatusCode())
	}
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("Retrying request")
}

// shouldRetry retries network errors including per-attempt timeouts, 429
// Too Many Requests and 5xx server errors. A request whose context is done
// is never retried.
func shouldRetry(res *resty.Response, err error) bool {
	if res != nil && res.Request != nil && res.Request.Context().Err() != nil {
		return false
	}
	if err != nil {
		return true
	}
	if res == nil {
		return false
	}
	status := res.StatusCode()
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// retryAfter honors a Retry-After header given in seconds or as an HTTP
// date. Zero falls back to exponential backoff.
func retryAfter(_ *resty.Client, res *resty.Response) (time.Duration, error) {
	if res == nil {
		return 0, nil
	}
	value := res.Header().Get("Retry-After")
	if value == "" {
		return 0, nil
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second, nil
		}
		return 0, nil
	}

	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay, nil
		}
	}

	return 0, nil
}

// restyLogger routes resty's own messages through zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug().Msgf(format, v...)
}
