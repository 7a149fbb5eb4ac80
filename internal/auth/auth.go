// Package auth provides venue token authentication (POST /auth/getToken).
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fransolofran/mesita-go/internal/core"
)

// AuthHeader is the header carrying the bearer token on authenticated
// REST and streaming calls.
const AuthHeader = "X-Auth-Token"

// Credentials holds the username/password pair for one environment.
type Credentials struct {
	Username string
	Password string
}

// TokenSource fetches and caches a bearer token from the venue's REST auth
// endpoint. It is safe for concurrent use; Token() returns the most recently
// obtained token without re-authenticating.
type TokenSource struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	timeout    time.Duration

	mu    sync.RWMutex
	token string
}

// NewTokenSource constructs a TokenSource for the given REST base URL.
func NewTokenSource(httpClient *http.Client, baseURL string, creds Credentials, timeout time.Duration) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &TokenSource{httpClient: httpClient, baseURL: baseURL, creds: creds, timeout: timeout}
}

// Token returns the cached token, or empty string if Login has not succeeded yet.
func (t *TokenSource) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// Login performs POST /auth/getToken with X-Username/X-Password headers and
// caches the token returned in the X-Auth-Token response header.
//
// A credential rejection (4xx), or a response without the X-Auth-Token
// header, is a core.AuthError; any other failure is a
// core.TransientNetworkError, both wrapped so callers can use errors.As.
func (t *TokenSource) Login(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/auth/getToken", nil)
	if err != nil {
		return "", fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("X-Username", t.creds.Username)
	req.Header.Set("X-Password", t.creds.Password)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", core.NewTransientNetworkError("auth.getToken", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", core.NewAuthError(fmt.Errorf("getToken rejected: status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return "", core.NewTransientNetworkError("auth.getToken", fmt.Errorf("status %d", resp.StatusCode))
	}

	token := resp.Header.Get(AuthHeader)
	if token == "" {
		return "", core.NewAuthError(fmt.Errorf("getToken response missing %s header", AuthHeader))
	}

	t.mu.Lock()
	t.token = token
	t.mu.Unlock()

	return token, nil
}
