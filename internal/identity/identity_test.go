package identity

import (
	"testing"

	"github.com/bridgebot/bridgebot/internal/wire"
)

func payload(source wire.Source, fields map[string]string) wire.Payload {
	return wire.Payload{Source: source, Fields: fields}
}

func TestResolveFormattingVariantsSameKey(t *testing.T) {
	t.Parallel()

	variants := []map[string]string{
		{"From": "whatsapp:+5491122334455"},
		{"From": "+54 9 11 2233-4455"},
		{"From": "whatsapp:5491122334455"},
		{"WaId": "5491122334455"},
	}
	const want = "wa:5491122334455"
	for _, fields := range variants {
		if got := Resolve(payload(wire.SourceTwilio, fields)); got != want {
			t.Fatalf("fields %v resolved to %q, want %q", fields, got, want)
		}
	}
}

func TestResolvePrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source wire.Source
		fields map[string]string
		want   string
	}{
		{
			name:   "From wins over WaId",
			source: wire.SourceTwilio,
			fields: map[string]string{"From": "whatsapp:+111", "WaId": "222"},
			want:   "wa:111",
		},
		{
			name:   "WaId when From empty",
			source: wire.SourceTwilio,
			fields: map[string]string{"From": "", "WaId": "222"},
			want:   "wa:222",
		},
		{
			name:   "recovered payload sender",
			source: wire.SourceRecovered,
			fields: map[string]string{"From": "whatsapp:+333"},
			want:   "wa:333",
		},
		{
			name:   "meta nested sender",
			source: wire.SourceMeta,
			fields: map[string]string{"from": "444"},
			want:   "wa:444",
		},
		{
			name:   "meta contact wa_id fallback",
			source: wire.SourceMeta,
			fields: map[string]string{"wa_id": "555"},
			want:   "wa:555",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Resolve(payload(tt.source, tt.fields)); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveAnonymous(t *testing.T) {
	t.Parallel()

	got := Resolve(payload(wire.SourceUnknown, nil))
	if got != Anonymous {
		t.Fatalf("got %q, want %q", got, Anonymous)
	}
	if !IsAnonymous(got) {
		t.Fatal("expected anonymous key")
	}
	// A sender with no digits at all is also anonymous.
	if got := Resolve(payload(wire.SourceTwilio, map[string]string{"From": "whatsapp:"})); got != Anonymous {
		t.Fatalf("got %q, want %q", got, Anonymous)
	}
}
