package wire

import (
	"encoding/base64"
	"net/url"
	"testing"
)

const metaEvent = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "100",
    "changes": [{
      "field": "messages",
      "value": {
        "contacts": [{"wa_id": "5491122334455", "profile": {"name": "Ana"}}],
        "messages": [{
          "from": "5491122334455",
          "id": "wamid.ABC",
          "timestamp": "1700000000",
          "type": "text",
          "text": {"body": "hola"}
        }]
      }
    }]
  }]
}`

func TestDetectMetaJSON(t *testing.T) {
	t.Parallel()

	p := Detect([]byte(metaEvent), "application/json")
	if p.Source != SourceMeta {
		t.Fatalf("unexpected source: %s", p.Source)
	}
	if p.Get("from") != "5491122334455" {
		t.Fatalf("unexpected from: %q", p.Get("from"))
	}
	if p.Get("body") != "hola" {
		t.Fatalf("unexpected body: %q", p.Get("body"))
	}
	if p.MessageID() != "wamid.ABC" {
		t.Fatalf("unexpected message id: %q", p.MessageID())
	}
}

func TestDetectMetaAudio(t *testing.T) {
	t.Parallel()

	event := `{"entry":[{"changes":[{"value":{
      "contacts":[{"wa_id":"549111"}],
      "messages":[{"from":"549111","id":"wamid.XYZ","type":"audio",
        "audio":{"id":"MEDIA123","mime_type":"audio/ogg; codecs=opus"}}]
    }}]}]}`
	p := Detect([]byte(event), "application/json")
	if p.Get("audio_id") != "MEDIA123" {
		t.Fatalf("unexpected audio id: %q", p.Get("audio_id"))
	}
	if !p.HasAudio() {
		t.Fatal("expected audio payload")
	}
}

func TestDetectTwilioForm(t *testing.T) {
	t.Parallel()

	body := "From=whatsapp%3A%2B5491122334455&Body=hola&MessageSid=SM123&WaId=5491122334455"
	p := Detect([]byte(body), "application/x-www-form-urlencoded")
	if p.Source != SourceTwilio {
		t.Fatalf("unexpected source: %s", p.Source)
	}
	if p.Get("From") != "whatsapp:+5491122334455" {
		t.Fatalf("unexpected From: %q", p.Get("From"))
	}
	if p.Text() != "hola" {
		t.Fatalf("unexpected text: %q", p.Text())
	}
	if p.MessageID() != "SM123" {
		t.Fatalf("unexpected message id: %q", p.MessageID())
	}
}

func TestDetectBase64MangledBody(t *testing.T) {
	t.Parallel()

	inner := "From=whatsapp%3A%2B549111&Body=hola&MessageSid=SM9"
	body := base64.StdEncoding.EncodeToString([]byte(inner))
	p := Detect([]byte(body), "application/x-www-form-urlencoded")
	if p.Source != SourceRecovered {
		t.Fatalf("unexpected source: %s", p.Source)
	}
	if p.GetFold("Body") != "hola" {
		t.Fatalf("unexpected body: %q", p.GetFold("Body"))
	}
	if p.GetFold("From") != "whatsapp:+549111" {
		t.Fatalf("unexpected from: %q", p.GetFold("From"))
	}
}

func TestDetectSingleEncodedFormBody(t *testing.T) {
	t.Parallel()

	// A plain form body percent-encoded once in transit: the form parse
	// collapses it into one key and decodes it in the same step.
	body := url.QueryEscape("From=15551234567&Body=hola como estas&MessageSid=SM123")
	p := Detect([]byte(body), "application/x-www-form-urlencoded")
	if p.Source != SourceRecovered {
		t.Fatalf("unexpected source: %s", p.Source)
	}
	if p.GetFold("Body") != "hola como estas" {
		t.Fatalf("unexpected body: %q", p.GetFold("Body"))
	}
	if p.GetFold("From") != "15551234567" {
		t.Fatalf("unexpected from: %q", p.GetFold("From"))
	}
	if p.MessageID() != "SM123" {
		t.Fatalf("unexpected message id: %q", p.MessageID())
	}
}

func TestDetectPercentMangledBody(t *testing.T) {
	t.Parallel()

	inner := "From=whatsapp%3A%2B549111&Body=buenas&WaId=549111"
	body := url.QueryEscape(inner)
	p := Detect([]byte(body), "application/x-www-form-urlencoded")
	if p.Source != SourceRecovered {
		t.Fatalf("unexpected source: %s", p.Source)
	}
	if p.GetFold("Body") != "buenas" {
		t.Fatalf("unexpected body: %q", p.GetFold("Body"))
	}
}

func TestDetectUndecodableBodyIsNonFatal(t *testing.T) {
	t.Parallel()

	p := Detect([]byte("%%%%%%%%%%%%%%%%%%%%%%%%%%%%"), "application/x-www-form-urlencoded")
	if p.Source != SourceUnknown {
		t.Fatalf("unexpected source: %s", p.Source)
	}
	if !p.Empty() {
		t.Fatalf("expected empty payload, got %v", p.Fields)
	}
	if p.Text() != "" {
		t.Fatalf("expected empty text, got %q", p.Text())
	}
}

func TestDetectShortSingleKeyIsNotMangled(t *testing.T) {
	t.Parallel()

	// A single short key with an empty value is a legitimate empty field,
	// not a double-encoded body.
	p := Detect([]byte("Body="), "application/x-www-form-urlencoded")
	if p.Source != SourceTwilio {
		t.Fatalf("unexpected source: %s", p.Source)
	}
}

func TestDetectIdempotent(t *testing.T) {
	t.Parallel()

	body := []byte("From=whatsapp%3A%2B549111&Body=hola&MessageSid=SM1")
	first := Detect(body, "application/x-www-form-urlencoded")
	second := Detect(body, "application/x-www-form-urlencoded")
	if first.Source != second.Source || len(first.Fields) != len(second.Fields) {
		t.Fatalf("detect not idempotent: %v vs %v", first, second)
	}
	for k, v := range first.Fields {
		if second.Fields[k] != v {
			t.Fatalf("field %q differs: %q vs %q", k, v, second.Fields[k])
		}
	}
}
