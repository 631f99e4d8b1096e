package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// MediaDescriptor references one inbound media item. Twilio events carry a
// download URL; Meta events carry a media/blob ID to be resolved against the
// graph API.
type MediaDescriptor struct {
	URL         string
	BlobID      string
	ContentType string
	SizeBytes   int64
}

// IsAudio reports whether the descriptor refers to audio content.
func (d MediaDescriptor) IsAudio() bool {
	return strings.Contains(strings.ToLower(d.ContentType), "audio")
}

var genericBodyFields = []string{"Body", "body", "text", "message", "Message", "Text"}

// Text extracts the user-visible message text, trying provider-explicit
// fields first and falling back to a case-insensitive field-name scan.
func (p Payload) Text() string {
	if v := strings.TrimSpace(p.Get("Body")); v != "" {
		return v
	}
	if v := strings.TrimSpace(p.Get("body")); v != "" {
		return v
	}
	for _, field := range genericBodyFields {
		if v := strings.TrimSpace(p.GetFold(field)); v != "" {
			return v
		}
	}
	return ""
}

// Media extracts zero or more media descriptors from the payload.
func (p Payload) Media() []MediaDescriptor {
	if p.Source == SourceMeta {
		return p.metaMedia()
	}
	return p.indexedMedia()
}

func (p Payload) metaMedia() []MediaDescriptor {
	var media []MediaDescriptor
	mime := p.Get("media_mime")
	if id := p.Get("audio_id"); id != "" {
		if mime == "" {
			mime = "audio/ogg"
		}
		media = append(media, MediaDescriptor{BlobID: id, ContentType: mime})
	}
	if id := p.Get("image_id"); id != "" {
		if mime == "" {
			mime = "image/jpeg"
		}
		media = append(media, MediaDescriptor{BlobID: id, ContentType: mime})
	}
	return media
}

// indexedMedia reads Twilio's MediaUrl{i}/MediaContentType{i} field pairs.
func (p Payload) indexedMedia() []MediaDescriptor {
	count, err := strconv.Atoi(strings.TrimSpace(p.GetFold("NumMedia")))
	if err != nil || count <= 0 {
		// NumMedia may be missing on recovered payloads; probe index 0.
		if u := p.GetFold("MediaUrl0"); u != "" {
			count = 1
		} else {
			return nil
		}
	}
	var media []MediaDescriptor
	for i := 0; i < count; i++ {
		u := strings.TrimSpace(p.GetFold(fmt.Sprintf("MediaUrl%d", i)))
		if u == "" {
			continue
		}
		media = append(media, MediaDescriptor{
			URL:         u,
			ContentType: strings.TrimSpace(p.GetFold(fmt.Sprintf("MediaContentType%d", i))),
		})
	}
	return media
}

// HasAudio reports whether any extracted media descriptor is audio.
func (p Payload) HasAudio() bool {
	for _, d := range p.Media() {
		if d.IsAudio() {
			return true
		}
	}
	return false
}

// MessageID returns the provider-supplied message identifier, if any.
func (p Payload) MessageID() string {
	if v := strings.TrimSpace(p.GetFold("MessageSid")); v != "" {
		return v
	}
	return strings.TrimSpace(p.Get("message_id"))
}
