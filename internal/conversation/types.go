// Package conversation defines the conversation domain types: sessions,
// turns, and content parts.
package conversation

import (
	"strings"
	"time"
)

// Turn role constants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentPart type constants.
const (
	PartText  = "text"
	PartMedia = "media"
)

// MediaReference points at a media object persisted in the blob store.
// Owned by the turn that references it; never mutated.
type MediaReference struct {
	URI         string `json:"uri"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// ContentPart is one typed piece of a turn's content.
type ContentPart struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Media *MediaReference `json:"media,omitempty"`
}

// TurnMeta records the origin of a turn.
type TurnMeta struct {
	Phone     string    `json:"phone,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Turn is one user or assistant message in a session's ordered history.
// Turns are immutable once appended.
type Turn struct {
	Role              string        `json:"role"`
	Parts             []ContentPart `json:"content"`
	ExternalMessageID string        `json:"external_message_id,omitempty"`
	Meta              TurnMeta      `json:"metadata,omitempty"`
}

// NewTextTurn builds a turn with a single text part.
func NewTextTurn(role, text string) Turn {
	return Turn{
		Role:  role,
		Parts: []ContentPart{{Type: PartText, Text: text}},
	}
}

// Text joins the turn's text parts.
func (t Turn) Text() string {
	var parts []string
	for _, p := range t.Parts {
		if p.Type == PartText && strings.TrimSpace(p.Text) != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Session is the per-user conversation state. UserID uniquely determines at
// most one live session; Turns are strictly append-ordered.
type Session struct {
	UserID string `json:"user_id"`
	Turns  []Turn `json:"turns"`
}

// Window returns the most recent n turns for composing a downstream request.
// The durable log is never trimmed; older turns are only excluded from the
// active context.
func Window(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
