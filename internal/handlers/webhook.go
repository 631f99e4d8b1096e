package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bridgebot/bridgebot/internal/config"
	"github.com/bridgebot/bridgebot/internal/conversation"
	"github.com/bridgebot/bridgebot/internal/history"
	"github.com/bridgebot/bridgebot/internal/identity"
	"github.com/bridgebot/bridgebot/internal/outbound"
	"github.com/bridgebot/bridgebot/internal/wire"
)

// TranscriptionFallback is sent when an audio message could not be
// transcribed. The user never sees the underlying failure.
const TranscriptionFallback = "No pude escuchar bien tu mensaje de voz. ¿Podrías escribirlo en texto?"

// twimlEmptyResponse acknowledges a Twilio webhook without triggering an
// auto-reply; actual replies go out through the messages API.
const twimlEmptyResponse = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

const maxBodyBytes = 1 << 20 // 1 MiB

// Transcriber resolves one audio descriptor to text within the request.
type Transcriber interface {
	Transcribe(ctx context.Context, userID string, desc wire.MediaDescriptor) (text string, ref *wire.MediaDescriptor, ok bool)
}

// ReplyGenerator produces the assistant reply for a user message.
type ReplyGenerator interface {
	Generate(ctx context.Context, userID, phone, text string, turns []conversation.Turn) string
}

// WebhookHandler runs the inbound pipeline: detect wire format, resolve
// identity, extract message, transcribe audio, dedup, persist, generate the
// reply, and dispatch it back over the originating channel.
type WebhookHandler struct {
	logger       *slog.Logger
	store        *history.Store
	transcriber  Transcriber
	replier      ReplyGenerator
	dispatcher   *outbound.Dispatcher
	metaSender   outbound.Sender
	twilioSender outbound.Sender

	historyWindow    int
	dedupWindow      int
	requireMessageID bool
	verifyToken      string
	appSecret        string
	twilioAuthToken  string
	twilioPublicURL  string
	validateTwilio   bool
}

func NewWebhookHandler(
	log *slog.Logger,
	store *history.Store,
	transcriber Transcriber,
	replier ReplyGenerator,
	dispatcher *outbound.Dispatcher,
	metaSender outbound.Sender,
	twilioSender outbound.Sender,
	cfg config.Config,
) *WebhookHandler {
	return &WebhookHandler{
		logger:           log.With(slog.String("handler", "webhook")),
		store:            store,
		transcriber:      transcriber,
		replier:          replier,
		dispatcher:       dispatcher,
		metaSender:       metaSender,
		twilioSender:     twilioSender,
		historyWindow:    cfg.History.Window,
		dedupWindow:      cfg.Dedup.Window,
		requireMessageID: cfg.Dedup.RequireMessageID,
		verifyToken:      cfg.Meta.VerifyToken,
		appSecret:        cfg.Meta.AppSecret,
		twilioAuthToken:  cfg.Twilio.AuthToken,
		twilioPublicURL:  cfg.Twilio.PublicURL,
		validateTwilio:   cfg.Twilio.ValidateSignature,
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook", h.Handle)
	e.POST("/webhook/meta", h.HandleMeta)
	e.GET("/webhook/meta", h.VerifyMeta)
	e.POST("/webhook/twilio", h.HandleTwilio)
}

// Handle processes an event on the autodetect path: the wire format decides
// the provider.
func (h *WebhookHandler) Handle(c echo.Context) error {
	body, err := h.readBody(c)
	if err != nil {
		return err
	}
	return h.process(c, body)
}

// HandleMeta processes a WhatsApp Cloud API event, verifying the payload
// signature when an app secret is configured.
func (h *WebhookHandler) HandleMeta(c echo.Context) error {
	body, err := h.readBody(c)
	if err != nil {
		return err
	}
	if h.appSecret != "" {
		header := c.Request().Header.Get("X-Hub-Signature-256")
		if !VerifyMetaSignature(h.appSecret, body, header) {
			h.logger.Warn("meta signature rejected")
			return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
		}
	}
	return h.process(c, body)
}

// VerifyMeta answers the graph API's webhook subscription handshake by
// echoing hub.challenge back.
func (h *WebhookHandler) VerifyMeta(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	if mode != "subscribe" || token != h.verifyToken {
		return echo.NewHTTPError(http.StatusForbidden, "verification failed")
	}
	return c.String(http.StatusOK, c.QueryParam("hub.challenge"))
}

// HandleTwilio processes a Twilio event, verifying the request signature
// when enabled.
func (h *WebhookHandler) HandleTwilio(c echo.Context) error {
	body, err := h.readBody(c)
	if err != nil {
		return err
	}
	if h.validateTwilio {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed form body")
		}
		requestURL := h.twilioPublicURL
		if requestURL == "" {
			requestURL = c.Scheme() + "://" + c.Request().Host + c.Request().URL.RequestURI()
		}
		header := c.Request().Header.Get("X-Twilio-Signature")
		if !VerifyTwilioSignature(h.twilioAuthToken, requestURL, form, header) {
			h.logger.Warn("twilio signature rejected")
			return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
		}
	}
	return h.process(c, body)
}

func (h *WebhookHandler) readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	return body, nil
}

// process runs the pipeline for one recovered payload. Every non-fatal
// outcome acknowledges with 200 so the provider does not redeliver; 400 is
// reserved for events with no resolvable sender identity.
func (h *WebhookHandler) process(c echo.Context, body []byte) error {
	ctx := c.Request().Context()
	payload := wire.Detect(body, c.Request().Header.Get("Content-Type"))

	userID := identity.Resolve(payload)
	if identity.IsAnonymous(userID) {
		h.logger.Warn("no sender identity",
			slog.String("source", string(payload.Source)),
			slog.Int("fields", len(payload.Fields)),
		)
		return echo.NewHTTPError(http.StatusBadRequest, "no sender identity")
	}
	phone := strings.TrimPrefix(userID, identity.KeyPrefix)
	log := h.logger.With(
		slog.String("user_id", userID),
		slog.String("source", string(payload.Source)),
	)

	text := payload.Text()
	externalID := payload.MessageID()

	var mediaRef *wire.MediaDescriptor
	transcriptionFailed := false
	if payload.HasAudio() {
		text, mediaRef, transcriptionFailed = h.resolveAudio(ctx, log, userID, payload)
	}

	if !transcriptionFailed && text == "" && mediaRef == nil {
		log.Info("event carries no message content, acknowledged")
		return h.ack(c, payload.Source)
	}
	if h.requireMessageID && externalID == "" {
		log.Warn("event without message id rejected by dedup policy")
		return h.ack(c, payload.Source)
	}

	release := h.store.Lock(userID)
	defer release()

	turns, err := h.store.Load(ctx, userID)
	if err != nil {
		log.Error("history load failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable")
	}
	if history.IsDuplicate(turns, externalID, text, h.dedupWindow) {
		log.Info("duplicate delivery acknowledged", slog.String("external_id", externalID))
		return h.ack(c, payload.Source)
	}

	userTurn := buildUserTurn(text, externalID, phone, payload.Source, mediaRef)
	turns = append(turns, userTurn)

	var reply string
	if transcriptionFailed {
		reply = TranscriptionFallback
	} else {
		reply = h.replier.Generate(ctx, userID, phone, text, conversation.Window(turns, h.historyWindow))
	}
	assistantTurn := conversation.NewTextTurn(conversation.RoleAssistant, reply)
	assistantTurn.Meta = conversation.TurnMeta{Channel: string(payload.Source), Timestamp: time.Now().UTC()}
	turns = append(turns, assistantTurn)

	if err := h.store.Write(ctx, userID, turns); err != nil {
		log.Error("history write failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable")
	}
	if err := h.store.Backup(ctx, userID, turns); err != nil {
		log.Warn("history backup failed", slog.Any("error", err))
	}

	sent := h.dispatcher.Dispatch(ctx, h.senderFor(payload.Source), phone, reply)
	log.Info("reply dispatched", slog.Int("fragments_sent", sent))
	return h.ack(c, payload.Source)
}

// resolveAudio transcribes the first audio descriptor. On failure the
// returned text is empty and failed=true; the caller answers with the fixed
// fallback instead of calling the generation backend.
func (h *WebhookHandler) resolveAudio(ctx context.Context, log *slog.Logger, userID string, payload wire.Payload) (text string, ref *wire.MediaDescriptor, failed bool) {
	for _, desc := range payload.Media() {
		if !desc.IsAudio() {
			continue
		}
		transcript, stored, ok := h.transcriber.Transcribe(ctx, userID, desc)
		if !ok {
			log.Warn("transcription unavailable, answering with fallback")
			return "", stored, true
		}
		log.Info("audio transcribed", slog.Int("chars", len(transcript)))
		return transcript, stored, false
	}
	return payload.Text(), nil, false
}

func buildUserTurn(text, externalID, phone string, source wire.Source, mediaRef *wire.MediaDescriptor) conversation.Turn {
	turn := conversation.Turn{
		Role:              conversation.RoleUser,
		ExternalMessageID: externalID,
		Meta: conversation.TurnMeta{
			Phone:     phone,
			Channel:   string(source),
			Timestamp: time.Now().UTC(),
		},
	}
	if text != "" {
		turn.Parts = append(turn.Parts, conversation.ContentPart{Type: conversation.PartText, Text: text})
	}
	if mediaRef != nil {
		turn.Parts = append(turn.Parts, conversation.ContentPart{
			Type: conversation.PartMedia,
			Media: &conversation.MediaReference{
				URI:         mediaRef.URL,
				ContentType: mediaRef.ContentType,
				SizeBytes:   mediaRef.SizeBytes,
			},
		})
	}
	return turn
}

func (h *WebhookHandler) senderFor(source wire.Source) outbound.Sender {
	if source == wire.SourceMeta {
		return h.metaSender
	}
	// Recovered payloads are Twilio-shaped form bodies.
	return h.twilioSender
}

func (h *WebhookHandler) ack(c echo.Context, source wire.Source) error {
	if source == wire.SourceMeta {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	return c.Blob(http.StatusOK, "text/xml", []byte(twimlEmptyResponse))
}
