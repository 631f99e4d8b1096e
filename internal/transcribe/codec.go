package transcribe

import "strings"

// codecEntry pairs a storage file extension with the audio format name
// submitted to the transcription service.
type codecEntry struct {
	ext    string
	format string
}

// codecTable maps content-type subtypes to codec entries. Unrecognized
// types fall back to ogg-opus, the dominant WhatsApp voice-note codec.
var codecTable = map[string]codecEntry{
	"ogg":    {ext: ".ogg", format: "ogg-opus"},
	"opus":   {ext: ".ogg", format: "ogg-opus"},
	"mpeg":   {ext: ".mp3", format: "mp3"},
	"mp3":    {ext: ".mp3", format: "mp3"},
	"mp4":    {ext: ".mp4", format: "mp4"},
	"m4a":    {ext: ".m4a", format: "mp4"},
	"x-m4a":  {ext: ".m4a", format: "mp4"},
	"wav":    {ext: ".wav", format: "wav"},
	"x-wav":  {ext: ".wav", format: "wav"},
	"amr":    {ext: ".amr", format: "amr"},
	"webm":   {ext: ".webm", format: "webm"},
	"aac":    {ext: ".aac", format: "mp4"},
	"flac":   {ext: ".flac", format: "flac"},
}

var defaultCodec = codecEntry{ext: ".ogg", format: "ogg-opus"}

// codecFor resolves the storage extension and job format for a media
// content type such as "audio/ogg; codecs=opus".
func codecFor(contentType string) codecEntry {
	subtype := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.IndexByte(subtype, ';'); idx >= 0 {
		subtype = strings.TrimSpace(subtype[:idx])
	}
	if idx := strings.IndexByte(subtype, '/'); idx >= 0 {
		subtype = subtype[idx+1:]
	}
	if entry, ok := codecTable[subtype]; ok {
		return entry
	}
	return defaultCodec
}
