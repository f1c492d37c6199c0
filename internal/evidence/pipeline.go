package evidence

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"call-translation-service/internal/events"
	"call-translation-service/internal/models"
	"call-translation-service/internal/observability/logging"
	"call-translation-service/internal/observability/metrics"
	"call-translation-service/internal/registry"
	"call-translation-service/internal/store"
	"call-translation-service/internal/translate"
)

// Run outcomes recorded in metrics.
const (
	outcomeSkipped         = "skipped"
	outcomeCompleted       = "completed"
	outcomeSubmitFailed    = "submit_failed"
	outcomeTranslateFailed = "translate_failed"
	outcomeProviderFailed  = "provider_failed"
	outcomeNoRecording     = "no_recording"
)

// Config holds evidence pipeline behavior settings.
type Config struct {
	// CallbackURL is this service's transcription callback endpoint, handed
	// to the provider on every job.
	CallbackURL string

	// MaxAttempts bounds both job submission and full-text translation.
	MaxAttempts int

	// RetryBackoff is the pause between attempts.
	RetryBackoff time.Duration

	// TranslateTimeout bounds each full-text translation attempt. Evidence
	// texts are whole calls, so this is much looser than the live path.
	TranslateTimeout time.Duration
}

// DefaultConfig returns sensible default evidence settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		RetryBackoff:     5 * time.Second,
		TranslateTimeout: 30 * time.Second,
	}
}

// Pipeline produces the durable post-call record: submit the recording for
// transcription, receive the transcript via callback, translate the whole
// text, store the result. Exhausted retries leave a flagged record.
type Pipeline struct {
	transcriber Transcriber
	translator  translate.Translator
	evidence    store.EvidenceStore
	registry    registry.Store
	publisher   *events.Publisher
	metrics     *metrics.Metrics
	cfg         Config
}

// NewPipeline creates the evidence pipeline.
func NewPipeline(
	transcriber Transcriber,
	translator translate.Translator,
	evidenceStore store.EvidenceStore,
	reg registry.Store,
	publisher *events.Publisher,
	cfg Config,
) *Pipeline {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.TranslateTimeout <= 0 {
		cfg.TranslateTimeout = def.TranslateTimeout
	}
	return &Pipeline{
		transcriber: transcriber,
		translator:  translator,
		evidence:    evidenceStore,
		registry:    reg,
		publisher:   publisher,
		metrics:     metrics.DefaultMetrics,
		cfg:         cfg,
	}
}

// OnCallEnded starts an evidence run for a call that reached a terminal
// state. It implements the pipeline.EvidenceTrigger interface and is called
// on its own goroutine after the webhook is acknowledged.
func (p *Pipeline) OnCallEnded(ctx context.Context, call models.Call) {
	logger := logging.WithCall(call.ID, call.TenantID)

	if !call.Modulations.TranscriptionEnabled {
		p.metrics.RecordEvidenceRun(outcomeSkipped)
		logger.Debug().Msg("Transcription disabled for call, skipping evidence run")
		return
	}
	if call.RecordingURL == "" {
		p.metrics.RecordEvidenceRun(outcomeNoRecording)
		p.flagFailed(ctx, call.ID, call.TenantID, "", "no recording available")
		logger.Warn().Msg("Call ended without a recording, evidence run flagged")
		return
	}

	p.setState(ctx, &models.EvidenceTranscript{
		CallID:   call.ID,
		TenantID: call.TenantID,
		RunState: models.EvidenceQueued,
	})

	job := Job{
		CallID:       call.ID,
		RecordingURL: call.RecordingURL,
		LanguageCode: call.Modulations.SourceLanguage,
		CallbackURL:  p.callbackURL(call.ID),
	}

	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			p.metrics.RecordEvidenceRetry()
			if !p.pause(ctx) {
				return
			}
		}
		jobID, err := p.transcriber.Submit(ctx, job)
		if err != nil {
			lastErr = err
			logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Transcription job submission failed")
			continue
		}
		p.setState(ctx, &models.EvidenceTranscript{
			CallID:   call.ID,
			TenantID: call.TenantID,
			RunState: models.EvidenceSubmitted,
		})
		logger.Info().Str("jobId", jobID).Msg("Evidence transcription job submitted")
		return
	}

	p.metrics.RecordEvidenceRun(outcomeSubmitFailed)
	p.flagFailed(ctx, call.ID, call.TenantID, "", fmt.Sprintf("submission failed after %d attempts: %v", p.cfg.MaxAttempts, lastErr))
	logger.Error().Err(lastErr).Msg("Evidence run failed, could not submit transcription job")
}

// CompleteTranscription finishes an evidence run with the transcript
// delivered by the provider callback: translate the full text and store the
// canonical record. A translation failure flags the record but keeps the
// original transcript.
func (p *Pipeline) CompleteTranscription(ctx context.Context, callID, text string, confidence float64) error {
	call, err := p.registry.GetCall(ctx, callID)
	if err != nil {
		return fmt.Errorf("evidence: complete transcription: %w", err)
	}
	logger := logging.WithCall(call.ID, call.TenantID)

	p.setState(ctx, &models.EvidenceTranscript{
		CallID:       call.ID,
		TenantID:     call.TenantID,
		RunState:     models.EvidenceTranscribed,
		OriginalText: text,
		Confidence:   confidence,
	})

	translated, err := p.translateBounded(ctx, text, call.Modulations)
	if err != nil {
		p.metrics.RecordEvidenceRun(outcomeTranslateFailed)
		p.flagFailed(ctx, call.ID, call.TenantID, text, fmt.Sprintf("translation failed after %d attempts: %v", p.cfg.MaxAttempts, err))
		logger.Error().Err(err).Msg("Evidence run flagged, full-text translation failed")
		return nil
	}

	p.setState(ctx, &models.EvidenceTranscript{
		CallID:         call.ID,
		TenantID:       call.TenantID,
		RunState:       models.EvidenceCompleted,
		OriginalText:   text,
		TranslatedText: translated,
		Confidence:     confidence,
		GeneratedAt:    time.Now(),
	})
	p.metrics.RecordEvidenceRun(outcomeCompleted)
	logger.Info().Msg("Evidence transcript completed")
	return nil
}

// FailTranscription finishes an evidence run after the provider reported a
// job failure.
func (p *Pipeline) FailTranscription(ctx context.Context, callID, reason string) error {
	call, err := p.registry.GetCall(ctx, callID)
	if err != nil {
		return fmt.Errorf("evidence: fail transcription: %w", err)
	}
	p.metrics.RecordEvidenceRun(outcomeProviderFailed)
	p.flagFailed(ctx, call.ID, call.TenantID, "", reason)
	lg := logging.WithCall(call.ID, call.TenantID)
	lg.Error().
		Str("reason", reason).
		Msg("Evidence run failed at the transcription provider")
	return nil
}

func (p *Pipeline) translateBounded(ctx context.Context, text string, mods models.Modulations) (string, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			p.metrics.RecordEvidenceRetry()
			if !p.pause(ctx) {
				return "", ctx.Err()
			}
		}
		tctx, cancel := context.WithTimeout(ctx, p.cfg.TranslateTimeout)
		translated, err := p.translator.Translate(tctx, text, mods.SourceLanguage, mods.TargetLanguage)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		return translated, nil
	}
	return "", lastErr
}

// setState upserts the evidence record and publishes the state change on the
// audit topic.
func (p *Pipeline) setState(ctx context.Context, rec *models.EvidenceTranscript) {
	if err := p.evidence.Upsert(ctx, rec); err != nil {
		lg := logging.WithCall(rec.CallID, rec.TenantID)
		lg.Error().Err(err).
			Str("runState", rec.RunState).
			Msg("Failed to persist evidence run state")
	}
	if err := p.publisher.PublishLifecycle(ctx, rec.CallID, models.EvidenceRunEvent{
		EventType: "call.evidence",
		CallID:    rec.CallID,
		TenantID:  rec.TenantID,
		RunState:  rec.RunState,
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		lg := logging.WithCall(rec.CallID, rec.TenantID)
		lg.Warn().Err(err).Msg("Failed to publish evidence run event")
	}
}

func (p *Pipeline) flagFailed(ctx context.Context, callID, tenantID, originalText, reason string) {
	p.setState(ctx, &models.EvidenceTranscript{
		CallID:        callID,
		TenantID:      tenantID,
		RunState:      models.EvidenceFailed,
		OriginalText:  originalText,
		FailureReason: reason,
		GeneratedAt:   time.Now(),
	})
}

func (p *Pipeline) callbackURL(callID string) string {
	if p.cfg.CallbackURL == "" {
		return ""
	}
	return p.cfg.CallbackURL + "?call_id=" + url.QueryEscape(callID)
}

// pause waits one backoff interval, returning false if the context ended.
func (p *Pipeline) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.cfg.RetryBackoff):
		return true
	}
}
