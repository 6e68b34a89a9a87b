package elgato

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultPort is the HTTP port Key Lights advertise over mDNS.
	DefaultPort = 9123

	// DefaultTimeout bounds every request to a device. Key Lights answer
	// on the local network within tens of milliseconds when healthy.
	DefaultTimeout = 2 * time.Second

	lightsPath    = "/elgato/lights"
	accessoryPath = "/elgato/accessory-info"
)

// Client is an HTTP client for a single Key Light device. The network
// target can be rebound when discovery observes an address change; all
// other fields are fixed at construction.
type Client struct {
	mu      sync.RWMutex
	baseURL string

	httpClient *http.Client
}

// NewClient creates a client for the device at host:port.
func NewClient(host string, port int) *Client {
	if port == 0 {
		port = DefaultPort
	}
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// SetTimeout sets the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Rebind points the client at a new host:port. Safe to call while
// requests are in flight; in-flight requests complete against the old
// target.
func (c *Client) Rebind(host string, port int) {
	if port == 0 {
		port = DefaultPort
	}
	c.mu.Lock()
	c.baseURL = fmt.Sprintf("http://%s:%d", host, port)
	c.mu.Unlock()
}

// BaseURL returns the current device base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// FetchState reads the current light state from the device.
func (c *Client) FetchState(ctx context.Context) (DeviceState, error) {
	var payload lightsPayload
	if err := c.getJSON(ctx, lightsPath, &payload); err != nil {
		return DeviceState{}, err
	}
	return fromWire(payload)
}

// PutState writes the desired light state to the device. The state is
// validated before any network call is made.
func (c *Client) PutState(ctx context.Context, state DeviceState) error {
	if err := ValidateState(state); err != nil {
		return err
	}

	body, err := json.Marshal(toWire(state))
	if err != nil {
		return NewParseError("failed to encode lights payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL()+lightsPath, bytes.NewReader(body))
	if err != nil {
		return NewNetworkError("failed to create PUT request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewNetworkError("PUT request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()
	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return NewHTTPError(resp.StatusCode, fmt.Sprintf("state update rejected with status %d", resp.StatusCode))
	}

	return nil
}

// AccessoryInfo reads the device identity and firmware information.
func (c *Client) AccessoryInfo(ctx context.Context) (*AccessoryInfo, error) {
	var info AccessoryInfo
	if err := c.getJSON(ctx, accessoryPath, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SetDisplayName updates the device's own display name. This is the
// name the device advertises; local nicknames are handled by the
// config registry instead.
func (c *Client) SetDisplayName(ctx context.Context, name string) error {
	if err := ValidateDisplayName(name); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"displayName": name})
	if err != nil {
		return NewParseError("failed to encode accessory-info payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL()+accessoryPath, bytes.NewReader(body))
	if err != nil {
		return NewNetworkError("failed to create PUT request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewNetworkError("PUT request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return NewHTTPError(resp.StatusCode, fmt.Sprintf("display name update rejected with status %d", resp.StatusCode))
	}

	return nil
}

// getJSON performs a GET request and decodes the JSON response body.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+path, nil)
	if err != nil {
		return NewNetworkError("failed to create GET request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewNetworkError("GET request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewNetworkError("failed to read response body", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewParseError("failed to parse JSON response", err)
	}

	return nil
}
