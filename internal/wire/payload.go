// Package wire classifies inbound webhook bodies and recovers a flat
// field mapping from them, independent of which provider delivered the
// event or how badly the body was re-encoded in transit.
package wire

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Source tags which wire format a payload was recovered from.
type Source string

const (
	// SourceMeta is a WhatsApp Cloud API JSON event.
	SourceMeta Source = "meta"
	// SourceTwilio is a Twilio form-encoded event.
	SourceTwilio Source = "twilio"
	// SourceRecovered marks a payload rebuilt by the recovery chain.
	SourceRecovered Source = "recovered"
	// SourceUnknown marks a body no strategy could decode.
	SourceUnknown Source = "unknown"
)

// Payload is the flat field mapping recovered from a webhook body.
type Payload struct {
	Fields map[string]string
	Source Source
}

// Get returns the value for an exact field name.
func (p Payload) Get(key string) string {
	return p.Fields[key]
}

// GetFold returns the value for a field name, compared case-insensitively.
func (p Payload) GetFold(key string) string {
	if v, ok := p.Fields[key]; ok {
		return v
	}
	for k, v := range p.Fields {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Empty reports whether no fields were recovered.
func (p Payload) Empty() bool {
	return len(p.Fields) == 0
}

// Detect classifies a raw request body and recovers its flat field mapping.
// It never fails: undecodable bodies yield an empty SourceUnknown payload,
// which downstream stages treat as "no identity / empty message".
func Detect(body []byte, contentType string) Payload {
	if isJSONContent(body, contentType) {
		if p, ok := detectMeta(body); ok {
			return p
		}
	}
	return detectForm(body)
}

func isJSONContent(body []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		return true
	}
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "{")
}

// metaEnvelope mirrors the WhatsApp Cloud API webhook event shape down to
// the first message and contact. Only the fields the pipeline consumes are
// declared.
type metaEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text"`
					Audio *struct {
						ID       string `json:"id"`
						MimeType string `json:"mime_type"`
					} `json:"audio"`
					Image *struct {
						ID       string `json:"id"`
						MimeType string `json:"mime_type"`
						Caption  string `json:"caption"`
					} `json:"image"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func detectMeta(body []byte) (Payload, bool) {
	var envelope metaEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Payload{}, false
	}
	fields := map[string]string{}
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			if len(value.Contacts) > 0 {
				setNonEmpty(fields, "wa_id", value.Contacts[0].WaID)
				setNonEmpty(fields, "profile_name", value.Contacts[0].Profile.Name)
			}
			if len(value.Messages) == 0 {
				continue
			}
			msg := value.Messages[0]
			setNonEmpty(fields, "from", msg.From)
			setNonEmpty(fields, "message_id", msg.ID)
			setNonEmpty(fields, "timestamp", msg.Timestamp)
			setNonEmpty(fields, "message_type", msg.Type)
			if msg.Text != nil {
				setNonEmpty(fields, "body", msg.Text.Body)
			}
			if msg.Audio != nil {
				setNonEmpty(fields, "audio_id", msg.Audio.ID)
				setNonEmpty(fields, "media_mime", msg.Audio.MimeType)
			}
			if msg.Image != nil {
				setNonEmpty(fields, "image_id", msg.Image.ID)
				setNonEmpty(fields, "media_mime", msg.Image.MimeType)
				setNonEmpty(fields, "body", msg.Image.Caption)
			}
			return Payload{Fields: fields, Source: SourceMeta}, true
		}
	}
	if len(fields) > 0 {
		return Payload{Fields: fields, Source: SourceMeta}, true
	}
	return Payload{}, false
}

func detectForm(body []byte) Payload {
	values, err := url.ParseQuery(string(body))
	if err != nil || len(values) == 0 {
		if recovered, ok := runRecovery("", body); ok {
			return Payload{Fields: flattenValues(recovered), Source: SourceRecovered}
		}
		return Payload{Source: SourceUnknown}
	}
	if key, mangled := mangledSingleKey(values); mangled {
		if recovered, ok := runRecovery(key, body); ok {
			return Payload{Fields: flattenValues(recovered), Source: SourceRecovered}
		}
		return Payload{Source: SourceUnknown}
	}
	return Payload{Fields: flattenValues(values), Source: SourceTwilio}
}

// mangledSingleKey reports whether the parsed form is the telltale shape of
// a double-encoded body: exactly one long key whose value is empty or "=".
func mangledSingleKey(values url.Values) (string, bool) {
	if len(values) != 1 {
		return "", false
	}
	for key, vals := range values {
		if len(key) < minMangledKeyLength {
			return "", false
		}
		if len(vals) == 0 {
			return key, true
		}
		v := vals[0]
		if v == "" || v == "=" {
			return key, true
		}
	}
	return "", false
}

func flattenValues(values url.Values) map[string]string {
	fields := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		fields[key] = vals[0]
	}
	return fields
}

func setNonEmpty(fields map[string]string, key, value string) {
	if strings.TrimSpace(value) != "" {
		fields[key] = value
	}
}
