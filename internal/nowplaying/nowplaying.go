// Package nowplaying fetches the station's now-playing feed and normalizes
// it into a single TrackInfo record, enriching missing album art through an
// artwork search fallback.
package nowplaying

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Placeholder values for performances with missing fields.
const (
	UnknownTitle  = "Unknown Song"
	UnknownArtist = "Unknown Artist"
)

// TrackInfo is the normalized now-playing record. It is immutable once
// constructed and replaced wholesale on every successful poll.
type TrackInfo struct {
	Title    string
	Artist   string
	Album    string
	ImageURL string
}

// Performance is a single entry of the feed's "performances" array. All
// fields are optional on the wire, hence the pointers.
type Performance struct {
	Title       *string `json:"title"`
	Artist      *string `json:"artist"`
	Album       *string `json:"album"`
	LargeImage  *string `json:"largeimage"`
	MediumImage *string `json:"mediumimage"`
	SmallImage  *string `json:"smallimage"`
}

// Source provides the raw now-playing feed.
type Source interface {
	NowPlaying(ctx context.Context) ([]Performance, error)
}

// ArtworkSource searches for album artwork by free-text term.
type ArtworkSource interface {
	Search(ctx context.Context, term string) (string, error)
}

// Fetcher combines the feed and the artwork fallback into one lookup.
type Fetcher struct {
	Source  Source
	Artwork ArtworkSource
	Logger  zerolog.Logger
}

// FetchNowPlaying returns the current track or nil. Failures are logged and
// never surfaced to the caller; a nil result means "no update".
func (f *Fetcher) FetchNowPlaying(ctx context.Context) *TrackInfo {
	perfs, err := f.Source.NowPlaying(ctx)
	if err != nil {
		f.Logger.Warn().Err(err).Msg("now-playing fetch failed")
		return nil
	}
	if len(perfs) == 0 {
		f.Logger.Debug().Msg("feed returned no performances")
		return nil
	}

	// Only the first performance is consulted.
	p := perfs[0]

	title := UnknownTitle
	if p.Title != nil {
		title = strings.TrimSpace(*p.Title)
	}
	artist := UnknownArtist
	if p.Artist != nil {
		artist = strings.TrimSpace(*p.Artist)
	}
	var album string
	if p.Album != nil {
		album = strings.TrimSpace(*p.Album)
	}

	var image string
	switch {
	case p.LargeImage != nil:
		image = *p.LargeImage
	case p.MediumImage != nil:
		image = *p.MediumImage
	case p.SmallImage != nil:
		image = *p.SmallImage
	}

	if image == "" && artist != "" && title != "" && f.Artwork != nil {
		found, err := f.Artwork.Search(ctx, artist+" "+title)
		if err != nil {
			f.Logger.Warn().Err(err).Str("Artist", artist).Str("Title", title).Msg("artwork search failed")
		} else {
			image = found
		}
	}

	return &TrackInfo{
		Title:    title,
		Artist:   artist,
		Album:    album,
		ImageURL: image,
	}
}
