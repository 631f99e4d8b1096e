package backend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bridgebot/bridgebot/internal/conversation"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	var received generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(generateResponse{
			Reply: []replyPart{{Type: "text", Text: "hola! como puedo ayudarte?"}},
		})
	}))
	defer srv.Close()

	client := NewClient(slog.Default(), srv.URL, 0)
	userTurn := conversation.NewTextTurn(conversation.RoleUser, "hola")
	userTurn.ExternalMessageID = "SM1"
	history := []conversation.Turn{userTurn}
	got := client.Generate(context.Background(), "wa:5491122334455", "5491122334455", "hola", history)
	if got != "hola! como puedo ayudarte?" {
		t.Fatalf("unexpected reply: %q", got)
	}
	if received.Input.Type != "text" || received.Input.Text != "hola" {
		t.Fatalf("unexpected input: %+v", received.Input)
	}
	if received.UserID != "wa:5491122334455" || received.Phone != "5491122334455" {
		t.Fatalf("unexpected identity fields: %+v", received)
	}
	if len(received.History) != 1 {
		t.Fatalf("history not forwarded: %+v", received.History)
	}
}

func TestGenerateJoinsMultipleTextParts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{
			Reply: []replyPart{
				{Type: "text", Text: "primera parte"},
				{Type: "image", Text: "ignored"},
				{Type: "text", Text: "segunda parte"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(slog.Default(), srv.URL, 0)
	got := client.Generate(context.Background(), "wa:1", "1", "hola", nil)
	if got != "primera parte\n\nsegunda parte" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestGenerateServerErrorFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(slog.Default(), srv.URL, 0)
	if got := client.Generate(context.Background(), "wa:1", "1", "hola", nil); got != FallbackReply {
		t.Fatalf("expected fallback reply, got %q", got)
	}
}

func TestGenerateTimeoutFallsBack(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(slog.Default(), srv.URL, 50*time.Millisecond)
	start := time.Now()
	got := client.Generate(context.Background(), "wa:1", "1", "hola", nil)
	if got != FallbackReply {
		t.Fatalf("expected fallback reply, got %q", got)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout did not bound the call")
	}
}

func TestGenerateEmptyReplyFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{})
	}))
	defer srv.Close()

	client := NewClient(slog.Default(), srv.URL, 0)
	if got := client.Generate(context.Background(), "wa:1", "1", "hola", nil); got != FallbackReply {
		t.Fatalf("expected fallback reply, got %q", got)
	}
}
