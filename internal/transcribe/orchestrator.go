package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/bridgebot/bridgebot/internal/poll"
	"github.com/bridgebot/bridgebot/internal/storage"
	"github.com/bridgebot/bridgebot/internal/wire"
)

// Orchestrator runs one audio descriptor end to end within a single request:
// download, durable persist, job submission, and polling to a terminal
// state. A nil result is reported as ok=false; the caller substitutes a
// user-facing fallback instead of propagating an error.
type Orchestrator struct {
	fetcher      MediaFetcher
	store        storage.Provider
	jobs         JobClient
	poller       poll.Poller
	languageCode string
	logger       *slog.Logger
	now          func() time.Time
}

// NewOrchestrator creates a transcription orchestrator.
func NewOrchestrator(
	log *slog.Logger,
	fetcher MediaFetcher,
	store storage.Provider,
	jobs JobClient,
	poller poll.Poller,
	languageCode string,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		fetcher:      fetcher,
		store:        store,
		jobs:         jobs,
		poller:       poller,
		languageCode: languageCode,
		logger:       log.With(slog.String("component", "transcribe")),
		now:          time.Now,
	}
}

// Transcribe resolves one audio descriptor to text. ok=false covers every
// failure mode (download, persist, submission, job failure, timeout, empty
// transcript); the reason is logged, never surfaced to the user.
// The persisted media reference is returned even when transcription fails,
// so the turn can still record what was received.
func (o *Orchestrator) Transcribe(ctx context.Context, userID string, desc wire.MediaDescriptor) (text string, ref *wire.MediaDescriptor, ok bool) {
	data, contentType, err := o.fetcher.Fetch(ctx, desc)
	if err != nil {
		o.logger.Warn("media download failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return "", nil, false
	}
	if contentType == "" {
		contentType = desc.ContentType
	}

	codec := codecFor(contentType)
	key := o.uploadKey(userID, codec.ext)
	if err := o.persistWithRetry(ctx, key, data); err != nil {
		o.logger.Warn("media persist failed",
			slog.String("user_id", userID),
			slog.String("key", key),
			slog.Any("error", err),
		)
		return "", nil, false
	}
	stored := &wire.MediaDescriptor{
		URL:         key,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
	}

	job := Job{
		ID:        "bridgebot-" + uuid.NewString(),
		SourceURI: key,
		Format:    codec.format,
	}
	// Single submission attempt: resubmitting the same audio would
	// double-bill the transcription service.
	if err := o.jobs.Start(ctx, job.ID, job.SourceURI, o.languageCode, job.Format); err != nil {
		o.logger.Warn("job submission failed",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return "", stored, false
	}

	state, err := o.waitForTerminal(ctx, job.ID)
	switch {
	case errors.Is(err, poll.ErrExhausted):
		o.logger.Warn("transcription timed out",
			slog.String("job_id", job.ID),
			slog.Int("max_attempts", o.poller.MaxAttempts),
		)
		return "", stored, false
	case err != nil:
		o.logger.Warn("transcription poll failed",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return "", stored, false
	}

	if state.Status == StatusFailed {
		o.logger.Warn("transcription failed",
			slog.String("job_id", job.ID),
			slog.String("reason", state.FailureReason),
		)
		return "", stored, false
	}

	transcript, err := o.jobs.FetchTranscript(ctx, state.ResultURI)
	if err != nil {
		o.logger.Warn("transcript fetch failed",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return "", stored, false
	}
	if transcript == "" {
		// An empty transcript is a recoverable failure, not a job failure.
		o.logger.Info("transcription produced empty text", slog.String("job_id", job.ID))
		return "", stored, false
	}
	return transcript, stored, true
}

// persistWithRetry writes the media bytes durably, retrying the write once
// inline. The provider is an abstract blob store, not necessarily local;
// a write can fail transiently.
func (o *Orchestrator) persistWithRetry(ctx context.Context, key string, data []byte) error {
	err := o.store.Put(ctx, key, bytes.NewReader(data))
	if err == nil {
		return nil
	}
	o.logger.Warn("media persist failed, retrying once",
		slog.String("key", key),
		slog.Any("error", err),
	)
	return o.store.Put(ctx, key, bytes.NewReader(data))
}

// waitForTerminal polls the job on a fixed interval until it reaches a
// terminal state or the attempt ceiling is hit. Once started, a job cannot
// be aborted mid-flight; the ceiling is the only cancellation hook.
func (o *Orchestrator) waitForTerminal(ctx context.Context, jobID string) (JobState, error) {
	var last JobState
	err := o.poller.Do(ctx, func(ctx context.Context) (bool, error) {
		state, err := o.jobs.Poll(ctx, jobID)
		if err != nil {
			return false, err
		}
		last = state
		return state.Status.Terminal(), nil
	})
	return last, err
}

// uploadKey builds the durable blob key for inbound media:
// uploads/{yyyy}/{mm}/{userId}/{uuid}.{ext}.
func (o *Orchestrator) uploadKey(userID, ext string) string {
	now := o.now().UTC()
	return path.Join(
		"uploads",
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", int(now.Month())),
		userID,
		uuid.NewString()+ext,
	)
}
