package castprotocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vishen/go-chromecast/cast"

	"castfm.app/castfm/internal/castcoord"
)

func TestNewMediaItem(t *testing.T) {
	desc := castcoord.MediaDescriptor{
		StreamURL:   "http://live.example/stream.aac",
		ContentType: "audio/mp3",
		Buffered:    true,
		Title:       "Song",
		Artist:      "Artist",
		Album:       "Album",
		ImageURL:    "http://img/a.jpg",
	}

	item := newMediaItem(desc)

	if item.ContentId != desc.StreamURL {
		t.Errorf("ContentId = %q, want %q", item.ContentId, desc.StreamURL)
	}
	if item.StreamType != "BUFFERED" {
		t.Errorf("StreamType = %q, want BUFFERED", item.StreamType)
	}
	if item.Metadata == nil {
		t.Fatal("Metadata = nil")
	}
	if item.Metadata.MetadataType != musicTrackMetadataType {
		t.Errorf("MetadataType = %d, want %d", item.Metadata.MetadataType, musicTrackMetadataType)
	}
	if item.Metadata.AlbumName != "Album" {
		t.Errorf("AlbumName = %q, want Album", item.Metadata.AlbumName)
	}
	if len(item.Metadata.Images) != 1 || item.Metadata.Images[0].URL != desc.ImageURL {
		t.Errorf("Images = %+v, want single image %q", item.Metadata.Images, desc.ImageURL)
	}
}

func TestNewMediaItemNoImage(t *testing.T) {
	item := newMediaItem(castcoord.MediaDescriptor{StreamURL: "http://x", ContentType: "audio/mp3"})

	if item.StreamType != "LIVE" {
		t.Errorf("StreamType = %q, want LIVE for non-buffered descriptor", item.StreamType)
	}
	if len(item.Metadata.Images) != 0 {
		t.Errorf("Images = %+v, want none", item.Metadata.Images)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestLoadStopsAfterMaxLaunchAttempts(t *testing.T) {
	origLaunch := launchReceiver
	origDelay := loadRetryDelay
	t.Cleanup(func() {
		launchReceiver = origLaunch
		loadRetryDelay = origDelay
	})
	loadRetryDelay = time.Millisecond

	var attempts int
	launchReceiver = func(cast.Conn) error {
		attempts++
		return timeoutErr{}
	}

	c, err := NewCastClient("http://192.0.2.10:8009")
	if err != nil {
		t.Fatalf("NewCastClient() err = %v", err)
	}
	c.connected = true

	if err := c.Load(castcoord.MediaDescriptor{StreamURL: "http://x", ContentType: "audio/mp3"}); err == nil {
		t.Fatal("Load() err = nil, want error")
	}
	if attempts != maxLoadAttempts {
		t.Errorf("launch attempts = %d, want %d", attempts, maxLoadAttempts)
	}
}

func TestIsTimeoutError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "net timeout", err: timeoutErr{}, want: true},
		{name: "other error", err: errors.New("refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTimeoutError(tt.err); got != tt.want {
				t.Errorf("isTimeoutError() = %v, want %v", got, tt.want)
			}
		})
	}
}
