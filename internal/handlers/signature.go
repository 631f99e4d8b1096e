package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// VerifyMetaSignature checks the X-Hub-Signature-256 header: "sha256=" plus
// the hex HMAC-SHA256 of the raw request body keyed with the app secret.
func VerifyMetaSignature(appSecret string, body []byte, header string) bool {
	expected, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(strings.ToLower(expected)))
}

// VerifyTwilioSignature checks the X-Twilio-Signature header: the base64
// HMAC-SHA1 of the full request URL with the sorted form parameters
// appended as key+value pairs, keyed with the auth token.
func VerifyTwilioSignature(authToken, requestURL string, form url.Values, header string) bool {
	if header == "" {
		return false
	}
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		for _, v := range form[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	computed := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(header))
}
