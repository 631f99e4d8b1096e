package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bridgebot/bridgebot/internal/wire"
)

const maxMediaBytes = 32 << 20 // 32 MiB

// Fetcher downloads inbound media with the originating provider's
// authentication: basic auth for Twilio-hosted URLs, a bearer-token graph
// lookup for Meta media IDs.
type Fetcher struct {
	httpClient   *http.Client
	graphBaseURL string
	metaToken    string
	twilioSID    string
	twilioToken  string
	logger       *slog.Logger
}

// NewFetcher creates a media fetcher. graphBaseURL defaults to the Meta
// graph API when empty.
func NewFetcher(log *slog.Logger, graphBaseURL, metaToken, twilioSID, twilioToken string) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(graphBaseURL) == "" {
		graphBaseURL = "https://graph.facebook.com/v19.0"
	}
	return &Fetcher{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		graphBaseURL: strings.TrimRight(graphBaseURL, "/"),
		metaToken:    metaToken,
		twilioSID:    twilioSID,
		twilioToken:  twilioToken,
		logger:       log.With(slog.String("component", "media_fetch")),
	}
}

// Fetch downloads the media bytes for a descriptor. Transient failures are
// retried once inline, without backoff, before surfacing.
func (f *Fetcher) Fetch(ctx context.Context, desc wire.MediaDescriptor) ([]byte, string, error) {
	if desc.URL != "" {
		return f.fetchWithRetry(ctx, func(ctx context.Context) ([]byte, string, error) {
			return f.get(ctx, desc.URL, f.basicAuth)
		})
	}
	if desc.BlobID != "" {
		return f.fetchWithRetry(ctx, func(ctx context.Context) ([]byte, string, error) {
			return f.fetchGraphMedia(ctx, desc.BlobID)
		})
	}
	return nil, "", fmt.Errorf("media descriptor has no url or blob id")
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, fetch func(context.Context) ([]byte, string, error)) ([]byte, string, error) {
	data, contentType, err := fetch(ctx)
	if err == nil {
		return data, contentType, nil
	}
	if !retryableDownload(err) {
		return nil, "", err
	}
	f.logger.Warn("media download failed, retrying once", slog.Any("error", err))
	return fetch(ctx)
}

// retryableDownload limits the single inline retry to transient failures:
// transport errors and 5xx responses. A 4xx rejection is deterministic and
// repeats on retry.
func retryableDownload(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	return true
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("download media status: %d", e.code)
}

// fetchGraphMedia resolves a Meta media ID to its download URL, then
// fetches the bytes. Both calls carry the bearer token.
func (f *Fetcher) fetchGraphMedia(ctx context.Context, blobID string) ([]byte, string, error) {
	lookup, _, err := f.get(ctx, f.graphBaseURL+"/"+blobID, f.bearerAuth)
	if err != nil {
		return nil, "", fmt.Errorf("resolve media id: %w", err)
	}
	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if err := json.Unmarshal(lookup, &meta); err != nil {
		return nil, "", fmt.Errorf("decode media lookup: %w", err)
	}
	if meta.URL == "" {
		return nil, "", fmt.Errorf("media lookup returned no url")
	}
	data, contentType, err := f.get(ctx, meta.URL, f.bearerAuth)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = meta.MimeType
	}
	return data, contentType, nil
}

func (f *Fetcher) get(ctx context.Context, url string, auth func(*http.Request)) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if auth != nil {
		auth(req)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", &statusError{code: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read media body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (f *Fetcher) basicAuth(req *http.Request) {
	if f.twilioSID != "" {
		req.SetBasicAuth(f.twilioSID, f.twilioToken)
	}
}

func (f *Fetcher) bearerAuth(req *http.Request) {
	if f.metaToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.metaToken)
	}
}
