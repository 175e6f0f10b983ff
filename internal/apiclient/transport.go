package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/ai-learning-tracker/tracker/internal/config"
	"github.com/ai-learning-tracker/tracker/internal/logging"
)

// Client talks to the learning tracker API. It never retries and never caches.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	Timeout     time.Duration
	ChatTimeout time.Duration
	token       func() string
	logger      *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.Timeout = d }
}

func WithChatTimeout(d time.Duration) Option {
	return func(c *Client) { c.ChatTimeout = d }
}

// WithBearer sends the token returned by fn as a bearer credential. An empty
// token sends nothing.
func WithBearer(fn func() string) Option {
	return func(c *Client) { c.token = fn }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(logger) }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = config.DefaultAPIURL
	}
	c := &Client{
		BaseURL:     baseURL,
		HTTPClient:  &http.Client{},
		Timeout:     config.DefaultRequestTimeout,
		ChatTimeout: config.DefaultChatTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig wires a client from the loaded application config. Extra
// options are applied after the configured ones.
func NewFromConfig(cfg config.Config, logger *zap.Logger, opts ...Option) *Client {
	base := []Option{
		WithTimeout(cfg.RequestTimeout),
		WithChatTimeout(cfg.ChatTimeout),
		WithLogger(logger),
	}
	return NewClient(cfg.APIURL, append(base, opts...)...)
}

type call struct {
	op      string
	method  string
	path    string
	query   url.Values
	body    any
	timeout time.Duration
}

// do performs one request bounded by call.timeout (or the client default).
// The deadline timer is released on every path. A response is decoded into
// out when out is non-nil.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	timeout := cl.timeout
	if timeout <= 0 {
		timeout = c.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.BaseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var reader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return &FetchError{Op: cl.op, Kind: KindBadRequest, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, reader)
	if err != nil {
		return &FetchError{Op: cl.op, Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		kind := KindNetwork
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		c.logger.Debug("request failed",
			zap.String("op", cl.op),
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return &FetchError{Op: cl.op, Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		zap.String("op", cl.op),
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(cl.op, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		kind := KindDecode
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return &FetchError{Op: cl.op, Status: resp.StatusCode, Kind: kind, Err: err}
	}
	return nil
}
