package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/wardstock/internal/session"
	"github.com/wolfeidau/wardstock/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is used when no API address is configured.
const DefaultBaseURL = "http://localhost:8000/api"

// Config holds common client configuration
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// Cache enables the HTTP cache; CacheDir selects disk over memory.
	Cache    bool
	CacheDir string

	// RateLimit caps requests per second sent to the server, 0 disables it.
	RateLimit float64
	RateBurst int

	// Telemetry wraps the transport with OpenTelemetry spans.
	Telemetry bool

	// Transport overrides the base transport.
	Transport http.RoundTripper
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Timeout:   30 * time.Second,
		UserAgent: "wardstock",
	}
}

// Request describes one API call. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte

	// retried is the retry marker, set on a replay after a refresh.
	retried bool
	// noRefresh disables the refresh cycle for this request.
	noRefresh bool
}

// NewRequest creates a request with body encoded as JSON. A nil body sends
// no content.
func NewRequest(method, path string, body any) (*Request, error) {
	req := &Request{Method: method, Path: path, Header: make(http.Header)}
	if body == nil {
		return req, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	req.Body = data
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

func (r *Request) clone() *Request {
	clone := *r
	clone.Header = r.Header.Clone()
	if clone.Header == nil {
		clone.Header = make(http.Header)
	}
	return &clone
}

// Response is a successful API response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into out.
func (r *Response) Decode(out any) error {
	if out == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Client is the API gateway shared by every command. It injects the
// session credential into outgoing requests and recovers from an expired
// access token with a single refresh and replay.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    *session.Store
	metrics    *telemetry.Metrics
	userAgent  string

	mu             sync.RWMutex
	defaultHeaders http.Header

	refreshGroup singleflight.Group
	unsubscribe  func()
}

// New creates a client bound to the given session store.
func New(cfg Config, store *session.Store) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", cfg.BaseURL)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(cfg),
		},
		session:        store,
		metrics:        telemetry.GetMetrics(),
		userAgent:      cfg.UserAgent,
		defaultHeaders: make(http.Header),
	}
	c.unsubscribe = store.Subscribe(c.onSessionChange)

	log.Debug().
		Str("baseURL", baseURL.String()).
		Dur("timeout", cfg.Timeout).
		Bool("cache", cfg.Cache).
		Msg("initialized api client")

	return c, nil
}

// Close detaches the client from the session store.
func (c *Client) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Session returns the session store the client reads credentials from.
func (c *Client) Session() *session.Store {
	return c.session
}

// BaseURL returns the resolved base address, always ending in a slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// DefaultHeader returns a header the client adds to every request.
func (c *Client) DefaultHeader(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.defaultHeaders.Get(key)
}

// SetDefaultHeader sets a header added to every request that does not
// carry it already.
func (c *Client) SetDefaultHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.defaultHeaders.Set(key, value)
}

// Do sends the request. Non-2xx responses are returned as errors.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	att, err := c.send(ctx, req)
	if err != nil {
		return c.handleFailure(ctx, req, att, err)
	}
	return att.response, nil
}

// Get sends a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// Post sends in as JSON and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := NewRequest(method, path, in)
	if err != nil {
		return err
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}

	return resp.Decode(out)
}

// attempt is the outcome of sending a request once.
type attempt struct {
	response *Response
	// authorization is the header value the request was sent with.
	authorization string
	// injected is true when authorization came from the client rather than
	// the caller.
	injected bool
}

func (c *Client) send(ctx context.Context, req *Request) (attempt, error) {
	httpReq, att, err := c.prepare(ctx, req)
	if err != nil {
		return att, err
	}

	started := time.Now()
	attrs := metric.WithAttributes(attribute.String("method", req.Method))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RequestsTotal.Add(ctx, 1, attrs)
		c.metrics.NetworkFailureTotal.Add(ctx, 1, attrs)
		return att, &NetworkError{Method: req.Method, URL: httpReq.URL.Redacted(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RequestsTotal.Add(ctx, 1, attrs)
		c.metrics.NetworkFailureTotal.Add(ctx, 1, attrs)
		return att, &NetworkError{Method: req.Method, URL: httpReq.URL.Redacted(), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	statusAttrs := metric.WithAttributes(
		attribute.String("method", req.Method),
		attribute.Int("status", resp.StatusCode),
	)
	c.metrics.RequestsTotal.Add(ctx, 1, statusAttrs)
	c.metrics.RequestDuration.Record(ctx, float64(time.Since(started).Milliseconds()), statusAttrs)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RequestErrorsTotal.Add(ctx, 1, statusAttrs)
		return att, newResponseError(req.Method, req.Path, resp.StatusCode, body)
	}

	att.response = &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	return att, nil
}

// resolve turns a request path into an absolute URL under the base URL.
func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}
	if !ref.IsAbs() {
		ref.Path = strings.TrimLeft(ref.Path, "/")
	}
	return c.baseURL.ResolveReference(ref), nil
}

// relativePath returns the path of u below the base URL.
func (c *Client) relativePath(u *url.URL) string {
	return strings.TrimPrefix(u.Path, c.baseURL.Path)
}

func newRequestID() string {
	return uuid.NewString()
}

func bodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return bytes.NewReader(body)
}
