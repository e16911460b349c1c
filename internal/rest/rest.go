package rest

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/skeinhq/skein-go/internal/config"
	"github.com/skeinhq/skein-go/internal/errors"
)

const (
	// retryBaseDelay is the wait before retry attempt n, scaled linearly.
	retryBaseDelay = 250 * time.Millisecond

	// breakerFailures is the consecutive-failure count that opens the circuit.
	breakerFailures uint32 = 5
	// breakerTimeout is how long the circuit stays open before a probe.
	breakerTimeout = 30 * time.Second
)

// Response is the outcome of a request/response call.
type Response struct {
	Data   json.RawMessage
	Status int
	Header http.Header
}

// Client issues request/response calls against the service's HTTP API.
//
// Failed calls trip a circuit breaker so a down service fails fast instead
// of eating the full timeout on every call. Idempotent requests that hit a
// network error or a 5xx are retried a bounded number of times.
type Client struct {
	log     *slog.Logger
	baseURL string
	headers map[string]string
	retries int
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Response]
}

// New creates an HTTP client from the options.
//
// The base URL comes from HTTPBaseURL, or is derived from the streaming URL
// when unset. Returns ErrMissingURL when neither yields a usable base.
func New(log *slog.Logger, options *config.Options) (*Client, error) {
	baseURL := options.HTTPBaseURL
	if baseURL == "" && options.URL != "" {
		derived, err := DeriveBaseURL(options.URL)
		if err != nil {
			return nil, err
		}

		baseURL = derived
	}

	if baseURL == "" {
		return nil, errors.ErrMissingURL
	}

	baseURL = strings.TrimRight(baseURL, "/")
	componentLog := log.With("component", "rest")

	c := &Client{
		log:     componentLog,
		baseURL: baseURL,
		headers: options.Headers,
		retries: options.HTTPRetries,
		http: &http.Client{
			Timeout: options.HTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}

	c.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "rest:" + baseURL,
		MaxRequests: 1, // allow 1 probe in half-open state
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			componentLog.Warn("Circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}

			// Client errors are the caller's problem, not service health.
			var httpErr *errors.HTTPError

			return stderrors.As(err, &httpErr) && httpErr.Status < http.StatusInternalServerError
		},
	})

	return c, nil
}

// DeriveBaseURL maps a streaming URL to the HTTP base of the same host:
// ws becomes http, wss becomes https, and any path is dropped.
func DeriveBaseURL(socketURL string) (string, error) {
	u, err := url.Parse(socketURL)
	if err != nil {
		return "", fmt.Errorf("parse socket url: %w", err)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, socketURL)
	}

	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""

	return strings.TrimRight(u.String(), "/"), nil
}

// Get issues a GET request against the given route.
func (c *Client) Get(ctx context.Context, route string, params url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodGet, route, params, nil)
}

// Post issues a POST request with a JSON body against the given route.
func (c *Client) Post(ctx context.Context, route string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, route, nil, body)
}

// Do issues a request against the given route.
//
// The body, if non-nil, is marshaled to JSON. Non-2xx statuses are returned
// as *errors.HTTPError carrying the response body. Idempotent methods are
// retried on network errors and 5xx responses with a linear delay between
// attempts; POST is never retried.
func (c *Client) Do(ctx context.Context, method, route string, params url.Values, body any) (*Response, error) {
	target, err := c.buildURL(route, params)
	if err != nil {
		return nil, err
	}

	var payload []byte

	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.log.Warn("Retrying request",
				"method", method,
				"route", route,
				"attempt", attempt,
				"error", lastErr,
			)

			select {
			case <-time.After(time.Duration(attempt) * retryBaseDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.breaker.Execute(func() (*Response, error) {
			return c.roundTrip(ctx, method, target, payload)
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !retryable(method, err) {
			break
		}
	}

	return nil, lastErr
}

// buildURL joins the base URL, route, and query parameters.
func (c *Client) buildURL(route string, params url.Values) (string, error) {
	if route == "" {
		return "", fmt.Errorf("empty route")
	}

	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}

	target := c.baseURL + route
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	return target, nil
}

// roundTrip performs one HTTP exchange and maps the result.
func (c *Client) roundTrip(ctx context.Context, method, target string, payload []byte) (*Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for name, value := range c.headers {
		req.Header.Set(name, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errors.TransportError{Op: "http", Err: err}
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug("Failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.TransportError{Op: "read body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errors.HTTPError{Status: resp.StatusCode, Body: string(data)}
	}

	return &Response{
		Data:   data,
		Status: resp.StatusCode,
		Header: resp.Header,
	}, nil
}

// Close releases pooled connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()

	return nil
}

// retryable reports whether a failed attempt is worth repeating. Only
// idempotent methods qualify, and only for transient failures.
func retryable(method string, err error) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
	default:
		return false
	}

	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *errors.HTTPError
	if stderrors.As(err, &httpErr) {
		return httpErr.Status >= http.StatusInternalServerError
	}

	return true
}
