package wire

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"
)

// minMangledKeyLength is the shortest single form key treated as a
// double-encoded body rather than a legitimately empty field.
const minMangledKeyLength = 24

// recoverFunc attempts to rebuild form values from a mangled body. key is
// the sole form key when the mangled-single-key shape was detected, empty
// otherwise; raw is the full request body.
type recoverFunc func(key string, raw []byte) (url.Values, bool)

// recoveryChain is tried in order; the first step that yields at least one
// recognizable identity or body field wins. Every step is pure and
// independently testable; failures fall through to the next step.
var recoveryChain = []recoverFunc{
	recoverBase64Key,
	recoverPercentKey,
	recoverFieldScrape,
}

var knownFieldPatterns = map[string]*regexp.Regexp{
	"Body": regexp.MustCompile(`(?i)Body=([^&\s]*)`),
	"From": regexp.MustCompile(`(?i)From=([^&\s]*)`),
	"WaId": regexp.MustCompile(`(?i)WaId=([^&\s]*)`),
}

func runRecovery(key string, raw []byte) (url.Values, bool) {
	for _, attempt := range recoveryChain {
		if values, ok := attempt(key, raw); ok {
			return values, true
		}
	}
	return nil, false
}

// recoverBase64Key assumes the body's true content was base64-encoded into
// the single form key and re-parses the decoded text as form data.
func recoverBase64Key(key string, raw []byte) (url.Values, bool) {
	candidate := key
	if candidate == "" {
		candidate = strings.TrimSpace(string(raw))
	}
	// Form parsing strips the padding "=" into the (empty) value, so try
	// the raw alphabets as well.
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(candidate)
		if err != nil {
			continue
		}
		if values, ok := parseRecognizable(string(decoded)); ok {
			return values, true
		}
	}
	return nil, false
}

// recoverPercentKey assumes the body was percent-encoded a second time and
// re-parses the unescaped text as form data. A body encoded exactly once
// collapses into the same single-key shape, but the outer form parse has
// already consumed its escapes, so the candidate itself is also tried as
// decoded form text.
func recoverPercentKey(key string, raw []byte) (url.Values, bool) {
	candidate := key
	if candidate == "" {
		candidate = strings.TrimSpace(string(raw))
	}
	if unescaped, err := url.QueryUnescape(candidate); err == nil && unescaped != candidate {
		if values, ok := parseRecognizable(unescaped); ok {
			return values, true
		}
	}
	return parseRecognizable(candidate)
}

// recoverFieldScrape is the last resort: pull known field names straight out
// of the raw body with regexes, ignoring form structure entirely.
func recoverFieldScrape(_ string, raw []byte) (url.Values, bool) {
	body := string(raw)
	values := url.Values{}
	for field, pattern := range knownFieldPatterns {
		match := pattern.FindStringSubmatch(body)
		if len(match) != 2 || match[1] == "" {
			continue
		}
		if unescaped, err := url.QueryUnescape(match[1]); err == nil {
			values.Set(field, unescaped)
			continue
		}
		values.Set(field, match[1])
	}
	if !hasRecognizableField(values) {
		return nil, false
	}
	return values, true
}

func parseRecognizable(body string) (url.Values, bool) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, false
	}
	if !hasRecognizableField(values) {
		return nil, false
	}
	return values, true
}

// hasRecognizableField reports whether values carries at least one identity
// or body field, the acceptance criterion for a recovery attempt.
func hasRecognizableField(values url.Values) bool {
	for key, vals := range values {
		if len(vals) == 0 || strings.TrimSpace(vals[0]) == "" {
			continue
		}
		switch {
		case strings.EqualFold(key, "From"),
			strings.EqualFold(key, "WaId"),
			strings.EqualFold(key, "Body"):
			return true
		}
	}
	return false
}
