package castprotocol

import (
	"fmt"
	"sync/atomic"

	"github.com/vishen/go-chromecast/cast"

	"castfm.app/castfm/internal/castcoord"
)

const (
	// Default media receiver application.
	defaultReceiverAppID = "CC1AD845"

	namespaceReceiver = "urn:x-cast:com.google.cast.receiver"
	namespaceMedia    = "urn:x-cast:com.google.cast.media"

	// metadataType for a music track metadata bundle.
	musicTrackMetadataType = 3
)

// Request ID counter for Chromecast messages
var requestIDCounter int32

func nextRequestID() int {
	return int(atomic.AddInt32(&requestIDCounter, 1))
}

type launchPayload struct {
	Type      string `json:"type"`
	RequestId int    `json:"requestId"`
	AppId     string `json:"appId"`
}

func (p *launchPayload) SetRequestId(id int) {
	p.RequestId = id
}

// loadPayload is a LOAD command carrying a music metadata bundle. The
// standard cast.LoadMediaCommand has no album field, hence the custom shape.
type loadPayload struct {
	Type        string    `json:"type"`
	RequestId   int       `json:"requestId"`
	Media       mediaItem `json:"media"`
	CurrentTime int       `json:"currentTime"`
	Autoplay    bool      `json:"autoplay"`
}

func (p *loadPayload) SetRequestId(id int) {
	p.RequestId = id
}

type mediaItem struct {
	ContentId   string     `json:"contentId"`
	ContentType string     `json:"contentType"`
	StreamType  string     `json:"streamType"`
	Metadata    *musicMeta `json:"metadata,omitempty"`
}

type musicMeta struct {
	MetadataType int          `json:"metadataType"`
	Title        string       `json:"title,omitempty"`
	Artist       string       `json:"artist,omitempty"`
	AlbumName    string       `json:"albumName,omitempty"`
	Images       []mediaImage `json:"images,omitempty"`
}

type mediaImage struct {
	URL string `json:"url"`
}

var (
	_ cast.Payload = (*launchPayload)(nil)
	_ cast.Payload = (*loadPayload)(nil)
)

// Swappable for tests.
var (
	launchReceiver = launchDefaultReceiver
	sendLoad       = loadMedia
)

// launchDefaultReceiver asks the device to start the default media receiver.
func launchDefaultReceiver(conn cast.Conn) error {
	payload := &launchPayload{
		Type:  "LAUNCH",
		AppId: defaultReceiverAppID,
	}

	requestID := nextRequestID()
	payload.SetRequestId(requestID)

	if err := conn.Send(requestID, payload, "sender-0", "receiver-0", namespaceReceiver); err != nil {
		return fmt.Errorf("send launch receiver: %w", err)
	}

	return nil
}

// loadMedia sends the LOAD command for desc to the media receiver identified
// by transportId.
func loadMedia(conn cast.Conn, transportId string, desc castcoord.MediaDescriptor) error {
	payload := &loadPayload{
		Type:     "LOAD",
		Media:    newMediaItem(desc),
		Autoplay: true,
	}

	requestID := nextRequestID()
	payload.SetRequestId(requestID)

	if err := conn.Send(requestID, payload, "sender-0", transportId, namespaceMedia); err != nil {
		return fmt.Errorf("send load: %w", err)
	}

	return nil
}

func newMediaItem(desc castcoord.MediaDescriptor) mediaItem {
	streamType := "LIVE"
	if desc.Buffered {
		streamType = "BUFFERED"
	}

	item := mediaItem{
		ContentId:   desc.StreamURL,
		ContentType: desc.ContentType,
		StreamType:  streamType,
	}

	meta := &musicMeta{
		MetadataType: musicTrackMetadataType,
		Title:        desc.Title,
		Artist:       desc.Artist,
		AlbumName:    desc.Album,
	}
	if desc.ImageURL != "" {
		meta.Images = []mediaImage{{URL: desc.ImageURL}}
	}
	item.Metadata = meta

	return item
}
