// Package landmark provides the wire types for averaged hand-landmark
// templates and the client adapter that fetches them from the landmark
// service via GET /landmarks/{sign}.
//
// Like the pose adapter, the client is single-attempt: non-2xx responses
// surface as descriptive errors and the caller decides fallback behaviour.
package landmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultTimeout is the per-request HTTP timeout.
const defaultTimeout = 10 * time.Second

// Point is a single normalized hand landmark. X and Y are in [0,1] relative
// to the frame; Z is depth relative to the wrist and may be absent.
type Point struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z,omitempty"`
}

// Template is the landmark payload for one sign: the per-point average over
// all sampled frames, plus optional per-frame samples and provenance.
type Template struct {
	// Sign is the vocabulary label (e.g. "hello").
	Sign string `json:"sign"`

	// Alias is the lowercase lookup key. Falls back to Sign when empty.
	Alias string `json:"alias,omitempty"`

	// Video is the source clip the landmarks were extracted from.
	Video string `json:"video,omitempty"`

	// FramesSampled is how many frames contributed to Average.
	FramesSampled int `json:"frames_sampled,omitempty"`

	// Average is the per-point mean across all sampled frames. May be empty
	// for signs whose extraction produced no detections.
	Average []Point `json:"average"`

	// Frames holds a subset of the raw per-frame samples.
	Frames [][]Point `json:"frames,omitempty"`
}

// Key returns the lookup key for the template: the lowercase alias, or the
// lowercase sign when no alias is set.
func (t *Template) Key() string {
	if t.Alias != "" {
		return strings.ToLower(t.Alias)
	}
	return strings.ToLower(t.Sign)
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Defaults to 10 s.
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

// Client fetches landmark templates from the landmark service. It is safe
// for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the landmark service at baseURL
// (e.g. "http://localhost:8000"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("landmark: baseURL must not be empty")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Fetch retrieves the landmark template for sign via GET /landmarks/{sign}.
// Non-2xx responses and transport failures return an error.
func (c *Client) Fetch(ctx context.Context, sign string) (*Template, error) {
	if sign == "" {
		return nil, errors.New("landmark: sign must not be empty")
	}

	reqURL := c.baseURL + "/landmarks/" + url.PathEscape(strings.ToLower(sign))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("landmark: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("landmark: GET %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("landmark: GET %s returned status %d", reqURL, resp.StatusCode)
	}

	var tpl Template
	if err := json.NewDecoder(resp.Body).Decode(&tpl); err != nil {
		return nil, fmt.Errorf("landmark: decode response: %w", err)
	}
	return &tpl, nil
}
