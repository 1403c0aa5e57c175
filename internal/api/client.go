// Package api is the HTTP client for the SentienceX backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	sxlog "github.com/sxlabs/sxconsole/internal/log"
)

// MaxResponseSize caps how much of a response body is read.
const MaxResponseSize = 10 * 1024 * 1024

// Defaults used when an option is left at its zero value.
const (
	DefaultBaseURL  = "http://localhost:8000"
	DefaultClientUI = "sxconsole"
	DefaultTimeout  = 5 * time.Second
	DefaultRetries  = 3
)

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s failed: %d", e.Method, e.Path, e.Status)
	if e.Body != "" {
		msg += " " + e.Body
	}
	return msg
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	AuthToken string
	ClientUI  string
	Timeout   time.Duration
	// Retries is the total number of attempts per request.
	Retries           int
	RequestsPerSecond float64
	Burst             int
	Logger            *sxlog.Logger
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	token    string
	clientUI string
	http     *retryablehttp.Client
	stream   *http.Client
	limiter  *rate.Limiter
	logger   *sxlog.Logger
}

// New creates a Client. The cookie jar is in-memory only and shared between
// the request client and the stream client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ClientUI == "" {
		opts.ClientUI = DefaultClientUI
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse base url %q", opts.BaseURL)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("base url %q must be http or https", opts.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create cookie jar")
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: opts.Timeout, Jar: jar}
	rc.RetryMax = opts.Retries - 1
	rc.Backoff = func(_, _ time.Duration, _ int, _ *http.Response) time.Duration { return 0 }
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{l: opts.Logger}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		base:     base,
		token:    opts.AuthToken,
		clientUI: opts.ClientUI,
		http:     rc,
		stream:   &http.Client{Jar: jar},
		limiter:  rate.NewLimiter(limit, burst),
		logger:   opts.Logger,
	}, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// ClientUI is the identifier sent with every chat message.
func (c *Client) ClientUI() string {
	return c.clientUI
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

// Authorize sets the bearer token on req when one is configured.
func (c *Client) Authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// AuthHeader returns the headers Authorize would set, for clients that
// build their own requests.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

// StreamClient returns an http.Client without a timeout for long-lived
// streams. Cancellation is by context only.
func (c *Client) StreamClient() *http.Client {
	return c.stream
}

// checkRetry retries transport errors, 429 and 5xx. Any other status is final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

// do issues one logical request (with retries) and decodes a JSON answer
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "wait for rate limiter")
	}

	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "encode %s %s", method, path)
		}
	}

	var raw any
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.URL(path), raw)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, path)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.Authorize(req.Request)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{
			Method: method,
			Path:   pathOnly(path),
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

func readResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if len(data) > MaxResponseSize {
		return nil, errors.Errorf("response exceeds %d bytes", MaxResponseSize)
	}
	return data, nil
}

func pathOnly(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// leveledLogger adapts the event log to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l *sxlog.Logger
}

func (a leveledLogger) Error(msg string, kv ...interface{}) { a.l.Warn().Fields(kv).Msg(msg) }
func (a leveledLogger) Warn(msg string, kv ...interface{})  { a.l.Warn().Fields(kv).Msg(msg) }
func (a leveledLogger) Info(msg string, kv ...interface{})  { a.l.Debug().Fields(kv).Msg(msg) }
func (a leveledLogger) Debug(msg string, kv ...interface{}) { a.l.Debug().Fields(kv).Msg(msg) }
