package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPJobClient implements JobClient against the transcription service's
// HTTP API: POST /jobs to submit, GET /jobs/{id} to poll, and a plain GET
// on the result URI for the finished transcript.
type HTTPJobClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPJobClient creates a transcription job client.
func NewHTTPJobClient(log *slog.Logger, baseURL, apiKey string) *HTTPJobClient {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPJobClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     log.With(slog.String("component", "transcribe_client")),
	}
}

type startJobRequest struct {
	JobID        string `json:"job_id"`
	SourceURI    string `json:"source_uri"`
	LanguageCode string `json:"language_code"`
	Format       string `json:"format"`
}

type pollJobResponse struct {
	Status        string `json:"status"`
	ResultURI     string `json:"result_uri,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// transcriptDocument is the result JSON shape: the transcript text lives at
// results.transcripts[0].transcript.
type transcriptDocument struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

// Start submits a transcription job. It is intentionally not retried.
func (c *HTTPJobClient) Start(ctx context.Context, jobID, sourceURI, languageCode, format string) error {
	payload, err := json.Marshal(startJobRequest{
		JobID:        jobID,
		SourceURI:    sourceURI,
		LanguageCode: languageCode,
		Format:       format,
	})
	if err != nil {
		return fmt.Errorf("marshal start request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("submit job status: %d", resp.StatusCode)
	}
	return nil
}

// Poll reports the current job state.
func (c *HTTPJobClient) Poll(ctx context.Context, jobID string) (JobState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return JobState{}, fmt.Errorf("build poll request: %w", err)
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return JobState{}, fmt.Errorf("poll job: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return JobState{}, fmt.Errorf("poll job status: %d", resp.StatusCode)
	}
	var body pollJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return JobState{}, fmt.Errorf("decode poll response: %w", err)
	}
	return JobState{
		Status:        normalizeStatus(body.Status),
		ResultURI:     body.ResultURI,
		FailureReason: body.FailureReason,
	}, nil
}

// FetchTranscript retrieves the result document and extracts the transcript
// text.
func (c *HTTPJobClient) FetchTranscript(ctx context.Context, resultURI string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURI, nil)
	if err != nil {
		return "", fmt.Errorf("build result request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("fetch transcript status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcript body: %w", err)
	}
	var doc transcriptDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}
	if len(doc.Results.Transcripts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(doc.Results.Transcripts[0].Transcript), nil
}

func (c *HTTPJobClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// normalizeStatus maps provider status spellings onto the JobStatus enum.
func normalizeStatus(raw string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "complete", "done":
		return StatusCompleted
	case "failed", "error":
		return StatusFailed
	case "in_progress", "running", "processing":
		return StatusInProgress
	default:
		return StatusPending
	}
}
