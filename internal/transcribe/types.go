// Package transcribe turns one inbound audio media descriptor into text:
// download, durable persist, async job submission, and bounded polling to a
// terminal state.
package transcribe

import (
	"context"

	"github.com/bridgebot/bridgebot/internal/wire"
)

// JobStatus is the transcription job state as reported by the provider.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusTimedOut   JobStatus = "timed_out"
)

// Terminal reports whether no further transition occurs from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// JobState is one observation of an asynchronous transcription job.
type JobState struct {
	Status        JobStatus
	ResultURI     string
	FailureReason string
}

// Job tracks one transcription attempt. It lives only for the duration of
// the webhook request; there is no retry across invocations.
type Job struct {
	ID        string
	SourceURI string
	Format    string
	State     JobState
}

// MediaFetcher downloads the raw bytes of an inbound media descriptor using
// provider-specific authentication.
type MediaFetcher interface {
	Fetch(ctx context.Context, desc wire.MediaDescriptor) (data []byte, contentType string, err error)
}

// JobClient drives the asynchronous transcription service.
type JobClient interface {
	// Start submits a job. It is called exactly once per audio turn:
	// a duplicate submission would double-bill the transcription service.
	Start(ctx context.Context, jobID, sourceURI, languageCode, format string) error
	// Poll reports the job's current state.
	Poll(ctx context.Context, jobID string) (JobState, error)
	// FetchTranscript retrieves and parses the finished transcript.
	FetchTranscript(ctx context.Context, resultURI string) (string, error)
}
