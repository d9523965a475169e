package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the hosted backend the client talks to when nothing else is configured.
	DefaultBaseURL = "https://journey-ai-webservice.onrender.com"
	// DefaultTimeout applies uniformly to every backend call.
	DefaultTimeout = 30 * time.Second
	// DefaultHealthTTL is how long a health response is reused.
	DefaultHealthTTL = 5 * time.Second

	healthCacheKey = "health"
)

// Client wraps every outbound call to the RAG backend. It sends and expects
// JSON, applies one timeout to all calls and never retries.
type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	userAgent string
	healthTTL time.Duration
	health    *cache.Cache
}

type Option func(*Client) error

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		c.http = hc
		return nil
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.Errorf("timeout must be positive, got %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent on every call.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// WithHealthTTL controls how long Health reuses a previous answer. Zero disables caching.
func WithHealthTTL(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return errors.Errorf("health ttl cannot be negative, got %s", d)
		}
		c.healthTTL = d
		return nil
	}
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:   strings.TrimRight(u.String(), "/"),
		http:      &http.Client{},
		timeout:   DefaultTimeout,
		userAgent: "ragchat",
		healthTTL: DefaultHealthTTL,
	}
	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, "failed to apply client option")
		}
	}
	if c.healthTTL > 0 {
		c.health = cache.New(c.healthTTL, 2*c.healthTTL)
	}
	return c, nil
}

// BaseURL returns the normalized backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Call issues one request and returns the raw JSON body of a 2xx response.
// body may be nil, a json.RawMessage / []byte sent verbatim, or any value
// that encodes to JSON.
func (c *Client) Call(ctx context.Context, method, path string, body interface{}, query url.Values) (json.RawMessage, error) {
	raw, _, err := c.call(ctx, method, path, body, query)
	return raw, err
}

func (c *Client) call(ctx context.Context, method, path string, body interface{}, query url.Values) (json.RawMessage, int, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, 0, err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	logger := log.With().
		Str("component", "client").
		Str("method", method).
		Str("path", path).
		Logger()

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		te := &TransportError{Kind: classify(err), Method: method, Path: path, Err: err}
		logger.Warn().Err(err).Str("kind", string(te.Kind)).Dur("duration", time.Since(start)).Msg("backend call failed")
		return nil, 0, te
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		te := &TransportError{Kind: classify(err), Method: method, Path: path, Status: resp.StatusCode, Err: err}
		logger.Warn().Err(err).Str("kind", string(te.Kind)).Msg("failed to read backend response")
		return nil, resp.StatusCode, te
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := &TransportError{
			Kind:   KindBackend,
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   data,
		}
		var apiErr api.APIError
		if len(data) > 0 && json.Unmarshal(data, &apiErr) == nil && (apiErr.Error != "" || apiErr.Message != "") {
			te.Payload = &apiErr
		}
		logger.Warn().Int("status", resp.StatusCode).Str("reason", te.Reason()).Msg("backend returned an error")
		return nil, resp.StatusCode, te
	}

	return json.RawMessage(data), resp.StatusCode, nil
}

// do runs a call and decodes a successful body into out.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, query url.Values, out interface{}) error {
	raw, status, err := c.call(ctx, method, path, body, query)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return &TransportError{Kind: KindBackend, Method: method, Path: path, Status: status, Err: errors.New("empty response body")}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{
			Kind:   KindBackend,
			Method: method,
			Path:   path,
			Status: status,
			Body:   raw,
			Err:    errors.Wrap(err, "failed to decode response body"),
		}
	}
	return nil
}

func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
		return data, nil
	}
}

func idPath(prefix, id string) string {
	return prefix + "/" + url.PathEscape(id)
}
