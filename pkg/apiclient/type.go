package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated, run 'telem login' first")
	ErrNoToken          = errors.New("no token received from API")
)

type Options struct {
	BaseURL   string
	TokenPath string
	Timeout   time.Duration
	// Optional; a client with Timeout is built when nil
	HTTPClient *http.Client
}

// Client talks to the telemetry REST API. Every method is a single
// blocking request without retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenStore
	token      string
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), body)
}
