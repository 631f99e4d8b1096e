package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers one fragment to one recipient over a provider transport.
type Sender interface {
	Send(ctx context.Context, to, text string) error
}

// MetaSender posts text messages through the Meta graph API.
type MetaSender struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
}

// NewMetaSender creates a graph API sender. baseURL defaults to the Meta
// graph API when empty.
func NewMetaSender(baseURL, accessToken, phoneNumberID string) *MetaSender {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://graph.facebook.com/v19.0"
	}
	return &MetaSender{
		baseURL:       strings.TrimRight(baseURL, "/"),
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

type metaTextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Send posts one text message to the recipient's phone number (digits only).
func (s *MetaSender) Send(ctx context.Context, to, text string) error {
	msg := metaTextMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
	}
	msg.Text.Body = text
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	endpoint := s.baseURL + "/" + s.phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	return doSend(s.httpClient, req)
}

// TwilioSender posts text messages through the Twilio messages API.
type TwilioSender struct {
	baseURL    string
	accountSID string
	authToken  string
	fromNumber string
	httpClient *http.Client
}

// NewTwilioSender creates a Twilio sender. baseURL defaults to the Twilio
// API when empty.
func NewTwilioSender(baseURL, accountSID, authToken, fromNumber string) *TwilioSender {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.twilio.com"
	}
	return &TwilioSender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts one form-encoded message to the recipient's phone number
// (digits only); the whatsapp: prefix is added here.
func (s *TwilioSender) Send(ctx context.Context, to, text string) error {
	form := url.Values{}
	form.Set("To", "whatsapp:+"+to)
	form.Set("From", s.fromNumber)
	form.Set("Body", text)
	endpoint := s.baseURL + "/2010-04-01/Accounts/" + s.accountSID + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)
	return doSend(s.httpClient, req)
}

func doSend(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send fragment: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send fragment status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
