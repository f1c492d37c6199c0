// Package httpapi implements the durable transcription provider client over
// its HTTP job API.
package httpapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"

	"call-translation-service/internal/evidence"
	"call-translation-service/internal/observability/logging"
)

// Config holds the provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type submitRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code"`
	WebhookURL   string `json:"webhook_url"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Transcriber submits transcription jobs to the provider's REST API. The
// provider transcribes asynchronously and posts the result to the webhook
// URL carried on the job.
type Transcriber struct {
	cfg Config
}

// Compile-time interface check.
var _ evidence.Transcriber = (*Transcriber)(nil)

// New creates a provider client.
func New(cfg Config) *Transcriber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Transcriber{cfg: cfg}
}

// Submit implements evidence.Transcriber.
func (t *Transcriber) Submit(ctx context.Context, job evidence.Job) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	var resp submitResponse
	err := requests.
		URL(strings.TrimSuffix(t.cfg.BaseURL, "/") + "/v1/transcriptions").
		Header("Authorization", t.cfg.APIKey).
		BodyJSON(&submitRequest{
			AudioURL:     job.RecordingURL,
			LanguageCode: job.LanguageCode,
			WebhookURL:   job.CallbackURL,
		}).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("httpapi: submit transcription: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("httpapi: submit transcription: provider returned no job id")
	}

	lg := logging.WithComponent("evidence")
	lg.Debug().
		Str("callId", job.CallID).
		Str("jobId", resp.ID).
		Str("status", resp.Status).
		Msg("Transcription job submitted")
	return resp.ID, nil
}
