// Package evidence produces the durable post-call transcript and its full
// translation. It runs entirely after the call ends and shares nothing with
// the live pipeline: a failed evidence run leaves a flagged record, never a
// degraded live stream, and vice versa.
package evidence

import "context"

// Job is one durable transcription request handed to the provider.
type Job struct {
	CallID       string
	RecordingURL string
	LanguageCode string
	CallbackURL  string
}

// Transcriber submits recordings to the durable transcription provider. The
// provider processes the job asynchronously and delivers the transcript via
// the callback URL; Submit only enqueues.
type Transcriber interface {
	Submit(ctx context.Context, job Job) (jobID string, err error)
}
