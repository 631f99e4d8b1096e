package history

import (
	"strings"

	"github.com/bridgebot/bridgebot/internal/conversation"
)

// IsDuplicate reports whether an inbound event was already applied to the
// turn log. A candidate is a duplicate only when a user-role turn in the
// recent window matches on BOTH the provider message ID and the text:
// providers resend edited bodies under the same ID, and users legitimately
// repeat themselves under new IDs.
//
// An absent externalMessageID disables deduplication for the event; callers
// that need stricter behavior gate on config instead.
func IsDuplicate(turns []conversation.Turn, externalMessageID, text string, window int) bool {
	if strings.TrimSpace(externalMessageID) == "" {
		return false
	}
	if window <= 0 {
		window = 10
	}
	recent := conversation.Window(turns, window)
	for _, turn := range recent {
		if turn.Role != conversation.RoleUser {
			continue
		}
		if turn.ExternalMessageID == externalMessageID && turn.Text() == text {
			return true
		}
	}
	return false
}
