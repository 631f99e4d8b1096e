// Package identity normalizes provider-specific sender identifiers into one
// canonical user key per person, regardless of which channel delivered the
// event.
package identity

import (
	"strings"

	"github.com/bridgebot/bridgebot/internal/wire"
)

// Anonymous is the sentinel key for events with no resolvable identity.
// The webhook surface rejects anonymous events before any history access,
// since unrelated senders would collide on the sentinel.
const Anonymous = "anon"

// KeyPrefix namespaces canonical keys by channel family.
const KeyPrefix = "wa:"

// Resolve extracts the sender identifier from a payload and returns the
// canonical user key, or Anonymous when nothing is recoverable.
//
// Precedence, first match wins: Twilio explicit From (channel prefix
// stripped), Twilio WaId, recovered-payload sender, Meta message sender or
// contact wa_id.
func Resolve(p wire.Payload) string {
	candidates := []string{
		stripChannelPrefix(p.GetFold("From")),
		p.GetFold("WaId"),
		p.Get("from"),
		p.Get("wa_id"),
	}
	for _, raw := range candidates {
		if digits := digitsOnly(raw); digits != "" {
			return KeyPrefix + digits
		}
	}
	return Anonymous
}

// IsAnonymous reports whether key is the anonymous sentinel.
func IsAnonymous(key string) bool {
	return key == Anonymous
}

// stripChannelPrefix removes a "whatsapp:"-style channel tag from a raw
// sender value.
func stripChannelPrefix(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		return raw[idx+1:]
	}
	return raw
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
