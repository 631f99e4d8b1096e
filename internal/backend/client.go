// Package backend calls the downstream generation service that turns a user
// message plus conversation history into reply text.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bridgebot/bridgebot/internal/conversation"
)

// FallbackReply is returned whenever the generation service is unreachable,
// times out, or answers with something unusable. The webhook caller never
// sees the underlying error.
const FallbackReply = "Estamos teniendo un problema técnico. Por favor, intentá de nuevo en unos minutos."

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 15 * time.Second

// Client is an HTTP client for the generation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a generation client. A non-positive timeout falls back
// to DefaultTimeout.
func NewClient(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("component", "backend")),
	}
}

type generateInput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type generateRequest struct {
	Input   generateInput       `json:"input"`
	History []conversation.Turn `json:"history"`
	Phone   string              `json:"phone"`
	UserID  string              `json:"userId"`
}

type replyPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type generateResponse struct {
	Reply []replyPart `json:"reply"`
}

// Generate asks the service for a reply to text given the user's history.
// It never returns an error to the caller: every failure mode collapses to
// the fixed fallback reply, with the reason logged.
func (c *Client) Generate(ctx context.Context, userID, phone, text string, history []conversation.Turn) string {
	reply, err := c.generate(ctx, userID, phone, text, history)
	if err != nil {
		c.logger.Error("generation call failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return FallbackReply
	}
	return reply
}

func (c *Client) generate(ctx context.Context, userID, phone, text string, history []conversation.Turn) (string, error) {
	if history == nil {
		history = []conversation.Turn{}
	}
	payload, err := json.Marshal(generateRequest{
		Input:   generateInput{Type: "text", Text: text},
		History: history,
		Phone:   phone,
		UserID:  userID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call backend: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("backend status: %d", resp.StatusCode)
	}
	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	var parts []string
	for _, p := range body.Reply {
		if p.Type == "text" && strings.TrimSpace(p.Text) != "" {
			parts = append(parts, p.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("backend returned no text reply")
	}
	return strings.Join(parts, "\n\n"), nil
}
