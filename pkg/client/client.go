// Package client is a typed HTTP client for the boardwatch API, used by the
// gateway agent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// StatusResponse is the body returned by status and heartbeat endpoints.
type StatusResponse struct {
	GatewayID   string     `json:"gatewayId,omitempty"`
	DeviceID    string     `json:"deviceId,omitempty"`
	Status      string     `json:"status"`
	LastUpdated *time.Time `json:"lastUpdated"`
	AgeMs       *int64     `json:"ageMs"`
}

// Heartbeat is the gateway heartbeat body.
type Heartbeat struct {
	GatewayID string   `json:"gatewayId"`
	LatencyMs *float64 `json:"latencyMs,omitempty"`
	Secret    string   `json:"secret,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// Command is a pending command as listed by the API.
type Command struct {
	CommandID string    `json:"commandId"`
	Value     int       `json:"value"`
	Mode      string    `json:"mode"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// SendHeartbeat marks the gateway online.
func (c *Client) SendHeartbeat(ctx context.Context, hb Heartbeat) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodPost, "/api/gateway-heartbeat", nil, hb, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ReportGatewayStatus posts an explicit gateway status.
func (c *Client) ReportGatewayStatus(ctx context.Context, gatewayID, status string) error {
	body := map[string]string{"gatewayId": gatewayID, "status": status}

	return c.do(ctx, http.MethodPost, "/api/gateway-status", nil, body, nil)
}

// ReportBoardStatus posts the attached board's status.
func (c *Client) ReportBoardStatus(ctx context.Context, deviceID, status string) error {
	body := map[string]string{"deviceId": deviceID, "status": status}

	return c.do(ctx, http.MethodPost, "/api/stm32-status", nil, body, nil)
}

// PendingCommands lists the device's pending commands, oldest first.
func (c *Client) PendingCommands(ctx context.Context, deviceID string) ([]Command, error) {
	var out struct {
		Commands []Command `json:"commands"`
	}

	q := url.Values{}
	if deviceID != "" {
		q.Set("deviceId", deviceID)
	}

	if err := c.do(ctx, http.MethodGet, "/api/stm32-command", q, nil, &out); err != nil {
		return nil, err
	}

	return out.Commands, nil
}

// MarkCommand advances a command to sent or completed.
func (c *Client) MarkCommand(ctx context.Context, commandID, status string) error {
	body := map[string]string{"commandId": commandID, "status": status}

	return c.do(ctx, http.MethodPut, "/api/stm32-command", nil, body, nil)
}

// Ping measures the round trip to the API.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	if err := c.do(ctx, http.MethodGet, "/api/ping", nil, nil, nil); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
		if body.Message != "" {
			msg += ": " + body.Message
		}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
