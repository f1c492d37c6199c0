// Package pipeline implements the live translation pipeline: resolve the
// call, translate the utterance, append the segment, publish the event.
//
// Everything here runs on the webhook path and must finish well inside the
// provider's acknowledgment window. Failures degrade (fallback marker,
// dropped segment) instead of propagating to the webhook response.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"call-translation-service/internal/events"
	"call-translation-service/internal/models"
	"call-translation-service/internal/observability/logging"
	"call-translation-service/internal/observability/metrics"
	"call-translation-service/internal/registry"
	"call-translation-service/internal/store"
	"call-translation-service/internal/translate"
)

// EvidenceTrigger is notified when a call reaches a terminal state. The
// evidence pipeline implements it; it runs after the webhook is acknowledged
// and shares no call path with the live pipeline.
type EvidenceTrigger interface {
	OnCallEnded(ctx context.Context, call models.Call)
}

// Config holds processor behavior settings.
type Config struct {
	TranslateTimeout  time.Duration
	AppendMaxAttempts int
}

// DefaultConfig returns sensible default processor settings.
func DefaultConfig() Config {
	return Config{
		TranslateTimeout:  2 * time.Second,
		AppendMaxAttempts: 3,
	}
}

// Processor coordinates the live pipeline for one normalized event at a
// time. Each webhook delivery is an independent unit of work; the processor
// itself holds no per-call state.
type Processor struct {
	registry   registry.Store
	translator translate.Translator
	segments   store.SegmentStore
	publisher  *events.Publisher
	evidence   EvidenceTrigger
	metrics    *metrics.Metrics
	cfg        Config
}

// New creates a new live pipeline processor. evidence may be nil when no
// evidence pipeline is wired (tests).
func New(
	reg registry.Store,
	translator translate.Translator,
	segments store.SegmentStore,
	publisher *events.Publisher,
	evidence EvidenceTrigger,
	cfg Config,
) *Processor {
	if cfg.TranslateTimeout <= 0 {
		cfg.TranslateTimeout = DefaultConfig().TranslateTimeout
	}
	if cfg.AppendMaxAttempts <= 0 {
		cfg.AppendMaxAttempts = DefaultConfig().AppendMaxAttempts
	}
	return &Processor{
		registry:   reg,
		translator: translator,
		segments:   segments,
		publisher:  publisher,
		evidence:   evidence,
		metrics:    metrics.DefaultMetrics,
		cfg:        cfg,
	}
}

// HandleTranscription processes one transcription event. It never returns an
// error for drop cases: unknown calls, disabled live translation and
// exhausted storage retries are all acknowledged and logged.
func (p *Processor) HandleTranscription(ctx context.Context, ev models.Event) {
	route, err := p.registry.Resolve(ctx, ev.ProviderCallID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			p.metrics.RecordWebhookDropped("unknown_call")
			lg := logging.WithComponent("pipeline")
			lg.Debug().
				Str("providerCallId", ev.ProviderCallID).
				Msg("Dropping transcription for unknown call")
			return
		}
		p.metrics.RecordWebhookDropped("registry_error")
		lg := logging.WithComponent("pipeline")
		lg.Error().Err(err).
			Str("providerCallId", ev.ProviderCallID).
			Msg("Registry lookup failed, dropping transcription")
		return
	}

	logger := logging.WithCall(route.CallID, route.TenantID)

	// First transcription moves the call from answered to in_progress.
	// Regressions are ignored by the registry; a terminal call means the
	// live pipeline is over for this call.
	if _, err := p.registry.UpdateStatus(ctx, ev.ProviderCallID, models.StatusInProgress, ""); err != nil {
		if errors.Is(err, registry.ErrTerminal) {
			p.metrics.RecordWebhookDropped("call_ended")
			logger.Debug().Msg("Dropping transcription for ended call")
			return
		}
		logger.Warn().Err(err).Msg("Could not mark call in progress")
	}

	if !route.Modulations.LiveTranslationEnabled {
		// Lifecycle bookkeeping above still happened; no segment is written.
		return
	}

	translated, fallback := p.translateBounded(ctx, ev.Text, route.Modulations)

	seg := &models.TranslatedSegment{
		CallID:            route.CallID,
		TenantID:          route.TenantID,
		OriginalText:      ev.Text,
		TranslatedText:    translated,
		SourceLanguage:    route.Modulations.SourceLanguage,
		TargetLanguage:    route.Modulations.TargetLanguage,
		Confidence:        ev.Confidence,
		ProviderTimestamp: ev.Timestamp,
	}

	if !p.appendBounded(ctx, seg, logger) {
		return
	}

	slg := logging.WithSegment(route.CallID, route.TenantID, seg.Seq)
	slg.Debug().
		Bool("fallback", fallback).
		Msg("Stored translated segment")

	// Bus publication is best-effort; the stream publisher reads from the
	// store, not from Kafka.
	if err := p.publisher.PublishSegment(ctx, route.CallID, models.SegmentEvent{
		EventType: "call.segment.translated",
		Segment:   *seg,
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish segment event")
	}
}

// HandleLifecycle processes one call lifecycle event and triggers the
// evidence pipeline on the terminal transition.
func (p *Processor) HandleLifecycle(ctx context.Context, ev models.Event) {
	status, ok := lifecycleStatus(ev.Type)
	if !ok {
		p.metrics.RecordWebhookDropped("unknown_event_type")
		return
	}

	call, err := p.registry.UpdateStatus(ctx, ev.ProviderCallID, status, ev.RecordingURL)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			p.metrics.RecordWebhookDropped("unknown_call")
			lg := logging.WithComponent("pipeline")
			lg.Debug().
				Str("providerCallId", ev.ProviderCallID).
				Msg("Dropping lifecycle event for unknown call")
		case errors.Is(err, registry.ErrTerminal):
			p.metrics.RecordWebhookDropped("call_ended")
		default:
			lg := logging.WithComponent("pipeline")
			lg.Error().Err(err).
				Str("providerCallId", ev.ProviderCallID).
				Msg("Lifecycle transition failed")
		}
		return
	}

	p.metrics.RecordCallTransition(string(call.Status))
	clg := logging.WithCall(call.ID, call.TenantID)
	clg.Info().
		Str("status", string(call.Status)).
		Msg("Call lifecycle transition")

	if err := p.publisher.PublishLifecycle(ctx, call.ID, models.LifecycleEvent{
		EventType: "call.lifecycle",
		CallID:    call.ID,
		TenantID:  call.TenantID,
		Status:    call.Status,
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		clg.Warn().Err(err).Msg("Failed to publish lifecycle event")
	}

	if call.Status.IsTerminal() && p.evidence != nil {
		// The evidence pipeline runs entirely after the call; it must not
		// delay the webhook acknowledgment.
		go p.evidence.OnCallEnded(context.WithoutCancel(ctx), call)
	}
}

// translateBounded translates the utterance under the configured timeout,
// substituting the fallback marker on any provider failure.
func (p *Processor) translateBounded(ctx context.Context, text string, mods models.Modulations) (string, bool) {
	tctx, cancel := context.WithTimeout(ctx, p.cfg.TranslateTimeout)
	defer cancel()

	start := time.Now()
	translated, err := p.translator.Translate(tctx, text, mods.SourceLanguage, mods.TargetLanguage)
	latency := time.Since(start).Seconds()

	if err != nil {
		p.metrics.RecordTranslation(true, latency)
		lg := logging.WithComponent("pipeline")
		lg.Warn().Err(err).
			Msg("Translation failed, storing fallback segment")
		return translate.Fallback(text), true
	}
	p.metrics.RecordTranslation(false, latency)
	return translated, false
}

// appendBounded appends the segment with bounded retries. One lost segment
// must not block subsequent ones, so after the last attempt it is dropped.
func (p *Processor) appendBounded(ctx context.Context, seg *models.TranslatedSegment, logger zerolog.Logger) bool {
	var lastErr error
	for attempt := 0; attempt < p.cfg.AppendMaxAttempts; attempt++ {
		if attempt > 0 {
			p.metrics.RecordAppendRetry()
		}
		if _, err := p.segments.Append(ctx, seg); err != nil {
			lastErr = err
			continue
		}
		p.metrics.RecordSegmentStored()
		return true
	}

	p.metrics.RecordAppendDropped()
	logger.Error().Err(lastErr).
		Int("attempts", p.cfg.AppendMaxAttempts).
		Msg("Dropping segment after exhausted append retries")
	return false
}

func lifecycleStatus(t models.EventType) (models.CallStatus, bool) {
	switch t {
	case models.EventCallInitiated:
		return models.StatusInitiated, true
	case models.EventCallAnswered:
		return models.StatusAnswered, true
	case models.EventCallHangup:
		return models.StatusCompleted, true
	case models.EventCallFailed:
		return models.StatusFailed, true
	default:
		return "", false
	}
}
