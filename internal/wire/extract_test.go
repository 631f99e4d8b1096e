package wire

import "testing"

func TestTextFallbackScan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{name: "explicit form body", fields: map[string]string{"Body": "hola"}, want: "hola"},
		{name: "meta nested body", fields: map[string]string{"body": "buenas"}, want: "buenas"},
		{name: "generic text field", fields: map[string]string{"TEXT": "che"}, want: "che"},
		{name: "generic message field", fields: map[string]string{"message": "hey"}, want: "hey"},
		{name: "no text", fields: map[string]string{"From": "549111"}, want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Payload{Fields: tt.fields, Source: SourceTwilio}
			if got := p.Text(); got != tt.want {
				t.Fatalf("unexpected text: %q", got)
			}
		})
	}
}

func TestIndexedMedia(t *testing.T) {
	t.Parallel()

	p := Payload{
		Source: SourceTwilio,
		Fields: map[string]string{
			"NumMedia":          "2",
			"MediaUrl0":         "https://api.example.com/media/0",
			"MediaContentType0": "audio/ogg",
			"MediaUrl1":         "https://api.example.com/media/1",
			"MediaContentType1": "image/jpeg",
		},
	}
	media := p.Media()
	if len(media) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(media))
	}
	if !media[0].IsAudio() {
		t.Fatal("expected first descriptor to be audio")
	}
	if media[1].IsAudio() {
		t.Fatal("expected second descriptor to not be audio")
	}
	if !p.HasAudio() {
		t.Fatal("expected payload to have audio")
	}
}

func TestIndexedMediaWithoutNumMedia(t *testing.T) {
	t.Parallel()

	p := Payload{
		Source: SourceRecovered,
		Fields: map[string]string{
			"MediaUrl0":         "https://api.example.com/media/0",
			"MediaContentType0": "audio/mpeg",
		},
	}
	media := p.Media()
	if len(media) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(media))
	}
	if !media[0].IsAudio() {
		t.Fatal("expected audio descriptor")
	}
}

func TestMetaMediaDescriptor(t *testing.T) {
	t.Parallel()

	p := Payload{
		Source: SourceMeta,
		Fields: map[string]string{
			"audio_id":   "MEDIA123",
			"media_mime": "audio/ogg; codecs=opus",
		},
	}
	media := p.Media()
	if len(media) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(media))
	}
	if media[0].BlobID != "MEDIA123" {
		t.Fatalf("unexpected blob id: %q", media[0].BlobID)
	}
	if !media[0].IsAudio() {
		t.Fatal("expected audio descriptor")
	}
}
