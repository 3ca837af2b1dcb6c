package site

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Path is the site-relative location of the published dataset.
const Path = "/site.json"

// DefaultMaxBytes caps a dataset download unless WithMaxBytes says otherwise.
const DefaultMaxBytes int64 = 32 << 20

// Client fetches the dataset from a running site.
type Client struct {
	base     string
	http     *http.Client
	maxBytes int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMaxBytes caps the size of the downloaded dataset. n <= 0 keeps the
// default.
func WithMaxBytes(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// NewClient creates a client for the site at base, e.g. "http://localhost:8080".
// A nil hc uses a client with a 10 second timeout.
func NewClient(base string, hc *http.Client, opts ...ClientOption) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Client{base: strings.TrimRight(base, "/"), http: hc, maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads and decodes the dataset.
func (c *Client) Fetch(ctx context.Context) (*Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+Path, nil)
	if err != nil {
		return nil, fmt.Errorf("site: fetch: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("site: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, fmt.Errorf("site: fetch: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("site: fetch: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("site: fetch: dataset exceeds %d bytes", c.maxBytes)
	}
	ds := NewDataset()
	if err := json.Unmarshal(body, ds); err != nil {
		return nil, err
	}
	return ds, nil
}
