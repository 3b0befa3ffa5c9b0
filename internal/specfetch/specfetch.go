// Package specfetch downloads assignment structure documents from the
// course specification server.
package specfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NotFoundError reports that the server has no document for the requested
// assignment.
type NotFoundError struct {
	Ref string
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no structure document for %q at %s", e.Ref, e.URL)
}

// maxDocumentSize bounds a structure document download. Real documents are
// a few kilobytes.
const maxDocumentSize = 1 << 20

// Client fetches structure documents relative to a base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client fetching from baseURL. A zero timeout disables
// the per-request deadline; callers can still bound a fetch through the
// context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the structure document named by ref (the assignment
// identifier, without extension). Documents are served as <base>/<ref>.json.
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("no specification base URL configured")
	}
	docURL := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(ref))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", docURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", docURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{Ref: ref, URL: docURL}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %s fetching %s", resp.Status, docURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", docURL, err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("structure document %s exceeds %d bytes", docURL, maxDocumentSize)
	}
	return data, nil
}
