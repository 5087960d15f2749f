// Package pose provides the client adapter for the pose-classification
// service. The service accepts a single base64-encoded JPEG webcam frame via
// POST and returns a short gesture description.
//
// The adapter is deliberately single-attempt: no retries, no backoff. A
// failed call surfaces as a descriptive error and the caller decides the
// fallback behaviour.
//
// Typical usage:
//
//	c, err := pose.New("http://localhost:8000/predict")
//	text, err := c.Predict(ctx, jpegBytes)
package pose

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultTimeout is the per-request HTTP timeout.
const defaultTimeout = 15 * time.Second

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Defaults to 15 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client calls the pose-classification endpoint. It is safe for concurrent
// use; Predict calls may run in parallel.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a Client targeting the pose endpoint at endpoint
// (e.g. "http://localhost:8000/predict"). endpoint must be non-empty.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("pose: endpoint must not be empty")
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// predictRequest is the JSON body sent to the pose endpoint.
type predictRequest struct {
	Image string `json:"image"`
}

// predictResponse is the JSON body returned by the pose endpoint.
type predictResponse struct {
	Text string `json:"text"`
}

// Predict sends a single JPEG frame to the pose service and returns its
// gesture description. The frame is base64-encoded into the request body.
// Non-2xx responses and transport failures return an error.
func (c *Client) Predict(ctx context.Context, jpeg []byte) (string, error) {
	if len(jpeg) == 0 {
		return "", errors.New("pose: frame must not be empty")
	}

	body := predictRequest{Image: base64.StdEncoding.EncodeToString(jpeg)}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("pose: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("pose: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pose: POST %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("pose: POST %s returned status %d", c.endpoint, resp.StatusCode)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("pose: decode response: %w", err)
	}
	return strings.TrimSpace(pr.Text), nil
}
