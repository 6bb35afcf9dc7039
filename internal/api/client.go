// Package api implements the client for the remote bookmark service.
//
// Every response arrives in a JSON envelope:
//
//	{"success": true, "data": {...}}
//	{"success": false, "error": {"code": "...", "message": "..."}}
//
// Failures are mapped onto the sync error taxonomy: network-level errors and
// 5xx responses are transient (retried on the next drain pass), 4xx responses
// are rejections.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/linkstashapp/linkstash-sync/internal/errors"
)

const (
	defaultRPS     = 10.0
	defaultBurst   = 5
	defaultTimeout = 15 * time.Second

	userAgent = "LinkStash/1.0"
)

// Client is a rate-limited client for the remote bookmark API.
type Client struct {
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	baseURL  string
	clientID string

	mu        sync.RWMutex
	authToken string
}

// Config configures the API client.
type Config struct {
	BaseURL  string        // e.g. "https://api.linkstash.app/v1"
	ClientID string        // Installation id, sent as X-Client-ID
	Timeout  time.Duration // Per-request timeout (default 15s)
	RPS      float64       // Requests per second (default 10)
	Logger   *slog.Logger
}

// New creates a new API client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RPS), defaultBurst),
		logger:   cfg.Logger,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clientID: cfg.ClientID,
	}
}

// envelope is the standard response wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
	Success bool            `json:"success"`
}

// wireError is the error payload inside a failed envelope.
type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// doRequest executes an HTTP request with rate limiting and decodes the
// response envelope. The returned raw data is nil for empty responses.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.clientID != "" {
		req.Header.Set("X-Client-ID", c.clientID)
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("api request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		// DNS failures, refused connections, timeouts: all worth retrying.
		return nil, errors.Transient(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Transient(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp.StatusCode, body)
	}

	if len(body) == 0 {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Transient(fmt.Errorf("decode envelope: %w", err))
	}
	if !env.Success {
		msg := "request failed"
		if env.Error != nil {
			msg = env.Error.Message
		}
		return nil, errors.FromStatus(resp.StatusCode, msg)
	}

	return env.Data, nil
}

// statusError maps a non-2xx response onto the sync error taxonomy,
// preferring the envelope's message when one is present.
func (c *Client) statusError(status int, body []byte) error {
	msg := fmt.Sprintf("unexpected status %d", status)

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		msg = env.Error.Message
	}

	return errors.FromStatus(status, msg)
}

// decode unmarshals envelope data into dest.
func decode(data json.RawMessage, dest any) error {
	if len(data) == 0 {
		return errors.Transientf("empty response data")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Transient(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// SetAuthToken installs the bearer token for subsequent requests. The host
// application owns the session lifecycle; the client only attaches what it
// is given. An empty token clears the header.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

// Ping checks whether the API is reachable. Used by the connectivity monitor.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}
