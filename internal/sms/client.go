// Package sms is a client for the SMSAPI REST gateway (https://www.smsapi.pl/docs).
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultEndpoint = "https://api.smsapi.pl"

// Config holds gateway credentials and limits
type Config struct {
	Token    string
	From     string
	Endpoint string
	Timeout  time.Duration
	// RatePerSecond caps outgoing requests. Zero disables the limiter.
	RatePerSecond float64
}

// Result is the gateway's answer for one destination
type Result struct {
	ID     string  `json:"id"`
	Points float64 `json:"points"`
	Number string  `json:"number"`
	Status string  `json:"status"`
	Error  string  `json:"error,omitempty"`
}

// APIError is a request-level error reported by the gateway
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("SMSAPI error %d: %s", e.Code, e.Message)
}

// Client sends SMS through the gateway
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a gateway client. A token is required.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("sms: gateway token is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// sendResponse covers both the success envelope and the error envelope
type sendResponse struct {
	Count int          `json:"count"`
	List  []rawResult  `json:"list"`
	Error *json.Number `json:"error"`
	Msg   string       `json:"message"`
}

type rawResult struct {
	ID     string          `json:"id"`
	Points json.Number     `json:"points"`
	Number string          `json:"number"`
	Status string          `json:"status"`
	Error  json.RawMessage `json:"error"`
}

// Send submits one UTF-8 message to one number and returns the per-destination results
func (c *Client) Send(ctx context.Context, to, message string) ([]Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("sms: rate limiter: %w", err)
		}
	}

	form := url.Values{}
	form.Set("to", to)
	form.Set("message", message)
	form.Set("encoding", "utf-8")
	form.Set("format", "json")
	if c.cfg.From != "" {
		form.Set("from", c.cfg.From)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/sms.do", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("sms: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sms: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("sms: failed to read response: %w", err)
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return nil, fmt.Errorf("sms: failed to decode response: %w", err)
	}
	if parsed.Error != nil {
		code, _ := parsed.Error.Int64()
		return nil, &APIError{Code: int(code), Message: parsed.Msg}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	results := make([]Result, 0, len(parsed.List))
	for _, r := range parsed.List {
		points, _ := r.Points.Float64()
		results = append(results, Result{
			ID:     r.ID,
			Points: points,
			Number: r.Number,
			Status: r.Status,
			Error:  errorText(r.Error),
		})
	}
	return results, nil
}

// errorText turns the per-item error field, which may be null, a code or a string, into text
func errorText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if n, err := num.Int64(); err == nil {
			return "error " + strconv.FormatInt(n, 10)
		}
		return "error " + num.String()
	}
	return s
}
