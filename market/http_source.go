package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSource polls a collector's REST endpoint for one snapshot at a time.
// It is the Source behind a Refresher when no stream is available.
type HTTPSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPSource creates a source for baseURL. An empty token sends no
// Authorization header.
func NewHTTPSource(baseURL, token string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Snapshot fetches GET {base}/v1/snapshots?symbol=SYM. The body may be a
// single snapshot object or an array holding it.
func (c *HTTPSource) Snapshot(ctx context.Context, symbol string) (Snapshot, error) {
	if symbol == "" {
		return Snapshot{}, fmt.Errorf("symbol is required")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	apiURL := fmt.Sprintf("%s/v1/snapshots?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	snaps, err := DecodeSnapshots(body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode response: %w", err)
	}
	for _, s := range snaps {
		if s.Symbol == symbol {
			return s, nil
		}
	}
	return Snapshot{}, fmt.Errorf("%s: %w", symbol, ErrNoSnapshot)
}
