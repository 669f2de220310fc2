// Package playlist resolves an M3U playlist reference down to the first
// direct playable stream URL it contains.
package playlist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrNoStreamURL is returned when the playlist contains no http(s) entry.
var ErrNoStreamURL = errors.New("playlist contains no stream URL")

const maxPlaylistBody = 1 << 20

// Resolve fetches the playlist document and returns the first line whose
// trimmed content starts with "http". Directives and comments are skipped.
func Resolve(ctx context.Context, client *http.Client, playlistURL string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return "", fmt.Errorf("Resolve request error: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Resolve GET error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Resolve unexpected status: %s", resp.Status)
	}

	scanner := bufio.NewScanner(io.LimitReader(resp.Body, maxPlaylistBody))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "http") {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("Resolve scan error: %w", err)
	}

	return "", ErrNoStreamURL
}
