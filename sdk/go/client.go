// Package herald is a Go client for the Herald campaign dispatch API.
package herald

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds the configuration for the Herald client.
type Config struct {
	// BaseURL is the root URL of the Herald server, e.g. "http://localhost:8080".
	// A trailing "/api/v1" is accepted and stripped.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// HTTPClient is an optional custom HTTP client.
	// Dispatch runs inside the request, so the default client has no timeout;
	// bound calls with the context instead.
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/api/v1")
}

// Client calls the Herald HTTP API.
type Client struct {
	cfg Config
}

// NewClient creates a new Herald client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg}
}

// CreateCampaign creates a campaign and imports its recipients.
func (c *Client) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*ImportSummary, error) {
	var out ImportSummary
	if err := c.do(ctx, http.MethodPost, "/api/v1/campaigns", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCampaigns returns every campaign with its counts, newest first.
func (c *Client) ListCampaigns(ctx context.Context) ([]CampaignWithStats, error) {
	var out struct {
		Campaigns []CampaignWithStats `json:"campaigns"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/campaigns", nil, &out); err != nil {
		return nil, err
	}
	return out.Campaigns, nil
}

// GetCampaign returns a campaign by id.
func (c *Client) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	var out Campaign
	if err := c.do(ctx, http.MethodGet, "/api/v1/campaigns/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns a campaign's per-status counts.
func (c *Client) Status(ctx context.Context, id string) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/campaigns/"+url.PathEscape(id)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dispatch sends the campaign to its pending recipients and waits for the result.
func (c *Client) Dispatch(ctx context.Context, id string) (*DispatchResult, error) {
	var out DispatchResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/campaigns/"+url.PathEscape(id)+"/dispatch", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recipients lists a campaign's recipients. An empty status lists all of them.
func (c *Client) Recipients(ctx context.Context, id, status string) ([]Recipient, error) {
	path := "/api/v1/campaigns/" + url.PathEscape(id) + "/recipients"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}

	var out struct {
		Recipients []Recipient `json:"recipients"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Recipients, nil
}

// Attempts returns a recipient's attempt log, newest first.
func (c *Client) Attempts(ctx context.Context, recipientID string) ([]Attempt, error) {
	var out struct {
		Attempts []Attempt `json:"attempts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/recipients/"+url.PathEscape(recipientID)+"/attempts", nil, &out); err != nil {
		return nil, err
	}
	return out.Attempts, nil
}

// Health returns the server health. A degraded server yields both the
// response and an APIError.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	if err != nil && out.Status == "" {
		return nil, err
	}
	return &out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("herald: failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("herald: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("herald: %s %s failed after %s: %w", method, path, time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("herald: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The health endpoint reports degraded state with a regular body
		if out != nil && json.Unmarshal(respBody, out) == nil && path == "/health" {
			return &APIError{StatusCode: resp.StatusCode, Code: "unhealthy", Message: string(bytes.TrimSpace(respBody))}
		}
		return parseAPIError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("herald: failed to parse response: %w", err)
	}
	return nil
}
