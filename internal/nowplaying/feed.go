package nowplaying

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Cap on feed response bodies. The feed is a few KB in practice.
const maxFeedBody = 1 << 20

type feedResponse struct {
	Performances []Performance `json:"performances"`
}

// FeedClient fetches the station's now-playing JSON feed.
type FeedClient struct {
	URL    string
	Client *http.Client
}

var _ Source = (*FeedClient)(nil)

// NowPlaying performs a single GET against the feed endpoint.
func (c *FeedClient) NowPlaying(ctx context.Context) ([]Performance, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("NowPlaying request error: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("NowPlaying GET error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NowPlaying unexpected status: %s", resp.Status)
	}

	var feed feedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBody)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("NowPlaying decode error: %w", err)
	}

	return feed.Performances, nil
}
