package pluginkit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxFetchSize caps downloads made on behalf of chat commands.
const MaxFetchSize = 16 << 20

// DefaultHTTPClient is shared by plugins that reach out to the web.
var DefaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// Fetch GETs url and returns the body and its content type. Bodies larger
// than MaxFetchSize are rejected.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	if client == nil {
		client = DefaultHTTPClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", url, err)
	}
	if len(data) > MaxFetchSize {
		return nil, "", fmt.Errorf("fetching %s: body exceeds %d bytes", url, MaxFetchSize)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
