package nowplaying

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func strptr(s string) *string { return &s }

type stubSource struct {
	perfs []Performance
	err   error
}

func (s *stubSource) NowPlaying(_ context.Context) ([]Performance, error) {
	return s.perfs, s.err
}

type stubArtwork struct {
	url    string
	err    error
	called bool
	term   string
}

func (a *stubArtwork) Search(_ context.Context, term string) (string, error) {
	a.called = true
	a.term = term
	return a.url, a.err
}

func newFetcher(src Source, art ArtworkSource) *Fetcher {
	return &Fetcher{Source: src, Artwork: art, Logger: zerolog.Nop()}
}

func TestFetchNowPlayingSourceError(t *testing.T) {
	f := newFetcher(&stubSource{err: errors.New("boom")}, &stubArtwork{})

	if got := f.FetchNowPlaying(context.Background()); got != nil {
		t.Fatalf("FetchNowPlaying() = %+v, want nil", got)
	}
}

func TestFetchNowPlayingNoPerformances(t *testing.T) {
	f := newFetcher(&stubSource{}, &stubArtwork{})

	if got := f.FetchNowPlaying(context.Background()); got != nil {
		t.Fatalf("FetchNowPlaying() = %+v, want nil", got)
	}
}

func TestFetchNowPlayingPlaceholders(t *testing.T) {
	f := newFetcher(&stubSource{perfs: []Performance{{}}}, nil)

	got := f.FetchNowPlaying(context.Background())
	if got == nil {
		t.Fatal("FetchNowPlaying() = nil, want track")
	}
	if got.Title != UnknownTitle {
		t.Errorf("Title = %q, want %q", got.Title, UnknownTitle)
	}
	if got.Artist != UnknownArtist {
		t.Errorf("Artist = %q, want %q", got.Artist, UnknownArtist)
	}
	if got.Album != "" {
		t.Errorf("Album = %q, want empty", got.Album)
	}
}

func TestFetchNowPlayingFirstPerformanceOnly(t *testing.T) {
	src := &stubSource{perfs: []Performance{
		{Title: strptr("First"), Artist: strptr("A"), LargeImage: strptr("http://img/large.jpg")},
		{Title: strptr("Second"), Artist: strptr("B")},
	}}
	f := newFetcher(src, &stubArtwork{})

	got := f.FetchNowPlaying(context.Background())
	if got == nil || got.Title != "First" {
		t.Fatalf("FetchNowPlaying() = %+v, want title First", got)
	}
}

func TestFetchNowPlayingImagePriority(t *testing.T) {
	tests := []struct {
		name string
		perf Performance
		want string
	}{
		{
			name: "large wins",
			perf: Performance{LargeImage: strptr("l"), MediumImage: strptr("m"), SmallImage: strptr("s")},
			want: "l",
		},
		{
			name: "medium next",
			perf: Performance{MediumImage: strptr("m"), SmallImage: strptr("s")},
			want: "m",
		},
		{
			name: "small last",
			perf: Performance{SmallImage: strptr("s")},
			want: "s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.perf.Title = strptr("Song")
			tt.perf.Artist = strptr("Artist")
			art := &stubArtwork{url: "fallback"}
			f := newFetcher(&stubSource{perfs: []Performance{tt.perf}}, art)

			got := f.FetchNowPlaying(context.Background())
			if got == nil || got.ImageURL != tt.want {
				t.Fatalf("ImageURL = %+v, want %q", got, tt.want)
			}
			if art.called {
				t.Error("artwork search called despite feed image present")
			}
		})
	}
}

func TestFetchNowPlayingArtworkFallback(t *testing.T) {
	art := &stubArtwork{url: "http://art/600x600bb.jpg"}
	src := &stubSource{perfs: []Performance{{Title: strptr("Song"), Artist: strptr("Artist")}}}
	f := newFetcher(src, art)

	got := f.FetchNowPlaying(context.Background())
	if got == nil || got.ImageURL != art.url {
		t.Fatalf("ImageURL = %+v, want %q", got, art.url)
	}
	if art.term != "Artist Song" {
		t.Errorf("search term = %q, want %q", art.term, "Artist Song")
	}
}

func TestFetchNowPlayingNoFallbackOnBlankFields(t *testing.T) {
	tests := []struct {
		name string
		perf Performance
	}{
		{name: "blank title", perf: Performance{Title: strptr("   "), Artist: strptr("Artist")}},
		{name: "blank artist", perf: Performance{Title: strptr("Song"), Artist: strptr(" ")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art := &stubArtwork{url: "should-not-be-used"}
			f := newFetcher(&stubSource{perfs: []Performance{tt.perf}}, art)

			got := f.FetchNowPlaying(context.Background())
			if got == nil {
				t.Fatal("FetchNowPlaying() = nil, want track")
			}
			if art.called {
				t.Error("artwork search called despite blank artist/title")
			}
			if got.ImageURL != "" {
				t.Errorf("ImageURL = %q, want empty", got.ImageURL)
			}
		})
	}
}

func TestFetchNowPlayingArtworkFailureIsSilent(t *testing.T) {
	art := &stubArtwork{err: errors.New("search down")}
	src := &stubSource{perfs: []Performance{{Title: strptr("Song"), Artist: strptr("Artist")}}}
	f := newFetcher(src, art)

	got := f.FetchNowPlaying(context.Background())
	if got == nil {
		t.Fatal("FetchNowPlaying() = nil, want track")
	}
	if got.ImageURL != "" {
		t.Errorf("ImageURL = %q, want empty", got.ImageURL)
	}
}

func TestFeedClientMalformedResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "invalid json", status: http.StatusOK, body: "{not json"},
		{name: "server error", status: http.StatusInternalServerError, body: ""},
		{name: "html body", status: http.StatusOK, body: "<html></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c := &FeedClient{URL: ts.URL, Client: ts.Client()}
			if _, err := c.NowPlaying(context.Background()); err == nil {
				t.Fatal("NowPlaying() err = nil, want error")
			}

			// The fetcher swallows the error and reports no update.
			f := newFetcher(c, nil)
			if got := f.FetchNowPlaying(context.Background()); got != nil {
				t.Fatalf("FetchNowPlaying() = %+v, want nil", got)
			}
		})
	}
}

func TestFeedClientDecodesPerformances(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"performances":[{"title":"Song","artist":"Artist","album":"Album","largeimage":"http://img/l.jpg"}]}`))
	}))
	defer ts.Close()

	c := &FeedClient{URL: ts.URL, Client: ts.Client()}
	perfs, err := c.NowPlaying(context.Background())
	if err != nil {
		t.Fatalf("NowPlaying() err = %v", err)
	}
	if len(perfs) != 1 {
		t.Fatalf("len(perfs) = %d, want 1", len(perfs))
	}
	if perfs[0].Title == nil || *perfs[0].Title != "Song" {
		t.Errorf("Title = %v, want Song", perfs[0].Title)
	}
	if perfs[0].SmallImage != nil {
		t.Errorf("SmallImage = %v, want nil", *perfs[0].SmallImage)
	}
}
