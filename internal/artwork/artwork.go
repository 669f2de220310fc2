// Package artwork looks up album art through the iTunes search API when the
// station feed carries no image for the current track.
package artwork

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

const (
	// The API hands back 100x100 thumbnails; rewriting the path token
	// requests the 600x600 rendition from the same image host.
	thumbToken = "100x100bb"
	largeToken = "600x600bb"

	maxSearchBody = 1 << 20
)

type searchResponse struct {
	Results []struct {
		ArtworkURL100 string `json:"artworkUrl100"`
	} `json:"results"`
}

// Client queries the artwork search endpoint. Lookups are rate limited so a
// misbehaving feed cannot hammer the API on every poll.
type Client struct {
	URL     string
	Client  *http.Client
	Limiter *rate.Limiter
}

// Search returns an artwork URL for the given free-text term, or "" when the
// search produced no usable result.
func (c *Client) Search(ctx context.Context, term string) (string, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("Search rate limit wait: %w", err)
		}
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("Search parse URL error: %w", err)
	}

	q := u.Query()
	q.Set("term", term)
	q.Set("media", "music")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("Search request error: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Search GET error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Search unexpected status: %s", resp.Status)
	}

	var result searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSearchBody)).Decode(&result); err != nil {
		return "", fmt.Errorf("Search decode error: %w", err)
	}

	if len(result.Results) == 0 || result.Results[0].ArtworkURL100 == "" {
		return "", nil
	}

	return strings.ReplaceAll(result.Results[0].ArtworkURL100, thumbToken, largeToken), nil
}
