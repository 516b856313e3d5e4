// Package bridge implements the HTTP client for the Forseti iRacing bridge,
// the external process which exposes live simulator telemetry on localhost.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const DefaultRequestTimeout = time.Second * 2

// Client polls the bridge's status, telemetry and session endpoints. It is
// stateless; resilience to a flapping bridge lives in the recorder's polling
// loops, which treat any error here as SourceUnavailable.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var status StatusResponse

	if err := c.get(ctx, "/status", &status); err != nil {
		return nil, err
	}

	return &status, nil
}

func (c *Client) Telemetry(ctx context.Context) (*TelemetryResponse, error) {
	var telemetry TelemetryResponse

	if err := c.get(ctx, "/telemetry", &telemetry); err != nil {
		return nil, err
	}

	telemetry.sanitize()

	return &telemetry, nil
}

func (c *Client) Session(ctx context.Context) (*SessionResponse, error) {
	var session SessionResponse

	if err := c.get(ctx, "/session", &session); err != nil {
		return nil, err
	}

	return &session, nil
}

// Disconnect asks the bridge to release its hold on the simulator SDK.
func (c *Client) Disconnect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/disconnect", nil)

	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("bridge: disconnect returned status: %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) get(ctx context.Context, path string, into interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)

	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)

	if err != nil {
		return errors.Wrapf(err, "could not reach bridge endpoint: %s", path)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("bridge: %s returned status: %d", path, resp.StatusCode)
	}

	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(into), "could not decode bridge response: %s", path)
}
