package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fransolofran/mesita-go/internal/auth"
)

// Client provides access to the venue's REST API: instrument discovery and
// account risk snapshots. Order entry and execution reports travel over the
// Wire Client's streaming connection, not this client.
type Client struct {
	baseURL     string
	tokenSource *auth.TokenSource
	httpClient  *http.Client
	logger      *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. tokenSource supplies the bearer
// token set on every authenticated request via the X-Auth-Token header.
func NewClient(baseURL string, tokenSource *auth.TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     baseURL,
		tokenSource: tokenSource,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
