package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/halden/outlay/internal/engine"
)

// Client is an HTTP executor for the outlay command API. It implements
// engine.Executor: network faults surface as errors, server answers as
// decoded responses.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates a new command client
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// envelope is the wire body for POST /v1/command
type envelope struct {
	Command        string         `json:"command"`
	IdempotencyKey string         `json:"idempotencyKey"`
	DeviceID       string         `json:"deviceID,omitempty"`
	Parameters     map[string]any `json:"parameters"`
}

// HealthResponse is the response from GET /healthz
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/healthz", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &health, nil
}

// Execute sends one command envelope and decodes the server's verdict.
// A returned error means the command may not have reached the server; the
// queue treats that as transient. Every answered status, auth failures
// included, comes back as a response so the queue classifies 4xx terminally
// instead of burning retries on a revoked key.
func (c *Client) Execute(ctx context.Context, cmd engine.Command) (*engine.Response, error) {
	body, err := json.Marshal(envelope{
		Command:        cmd.Name,
		IdempotencyKey: cmd.IdempotencyKey,
		DeviceID:       c.DeviceID,
		Parameters:     cmd.Parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/command", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", cmd.IdempotencyKey)
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var decoded engine.Response
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	if decoded.Code == 0 {
		decoded.Code = resp.StatusCode
	}
	return &decoded, nil
}
