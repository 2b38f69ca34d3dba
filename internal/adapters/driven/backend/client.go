package backend

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

// Ensure Client implements the driven ports.
var (
	_ driven.ContentFetcher    = (*Client)(nil)
	_ driven.MutationReplayer  = (*Client)(nil)
	_ driven.ConnectivityProbe = (*Client)(nil)
)

// Default configuration values.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultRetryCount   = 3
	DefaultRetryWait    = 500 * time.Millisecond
	DefaultRetryMaxWait = 5 * time.Second
	DefaultProbeTimeout = 5 * time.Second
)

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the backend root, e.g. http://localhost:8080.
	BaseURL string

	// Timeout bounds a single request (default: 30s).
	Timeout time.Duration

	// RetryCount is the number of mutation replay retries (default: 3).
	// Negative disables retries.
	RetryCount int

	// RetryWait is the initial backoff between retries (default: 500ms).
	RetryWait time.Duration

	// RetryMaxWait caps the backoff (default: 5s).
	RetryMaxWait time.Duration

	// ProbeTimeout bounds a health check (default: 5s).
	ProbeTimeout time.Duration

	// Transport overrides the HTTP transport. Mostly useful in tests.
	Transport http.RoundTripper
}

// Client talks to the study platform backend.
//
// Writes go through a retrying client; replay is safe to retry because the
// backend de-duplicates on the idempotency key. Content downloads and health
// probes use a client without retries so progress and connectivity reflect
// a single attempt.
type Client struct {
	writes  *resty.Client
	reads   *resty.Client
	baseURL string
	probeTO time.Duration
}

// NewClient creates a backend client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryCount == 0 {
		cfg.RetryCount = DefaultRetryCount
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = DefaultRetryWait
	}
	if cfg.RetryMaxWait <= 0 {
		cfg.RetryMaxWait = DefaultRetryMaxWait
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	writes := newRestyClient(baseURL, cfg).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{
		writes:  writes,
		reads:   newRestyClient(baseURL, cfg),
		baseURL: baseURL,
		probeTO: cfg.ProbeTimeout,
	}, nil
}

func newRestyClient(baseURL string, cfg Config) *resty.Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetLogger(restyLogger{}).
		SetHeader("User-Agent", "swm")
	if cfg.Transport != nil {
		c.SetTransport(cfg.Transport)
	}
	return c
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// restyLogger routes resty's internal messages to the application logger.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...any) {
	logger.Warn("backend: "+strings.TrimSpace(format), v...)
}

func (restyLogger) Warnf(format string, v ...any) {
	logger.Debug("backend: "+strings.TrimSpace(format), v...)
}

func (restyLogger) Debugf(format string, v ...any) {
	logger.Debug("backend: "+strings.TrimSpace(format), v...)
}
