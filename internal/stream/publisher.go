// Package stream serves live translated segments to subscribers over SSE.
//
// The publisher polls the segment store on behalf of each subscriber and
// holds a per-subscriber cursor. It deliberately does not fan out from the
// pipeline or from Kafka: the store is the source of truth, so a subscriber
// that connects mid-call (or reconnects with a cursor) replays exactly what
// it missed.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"call-translation-service/internal/models"
	"call-translation-service/internal/observability/logging"
	"call-translation-service/internal/observability/metrics"
	"call-translation-service/internal/registry"
	"call-translation-service/internal/store"
)

// Config holds stream publisher settings.
type Config struct {
	// PollInterval is how often each subscriber's cursor is advanced against
	// the store.
	PollInterval time.Duration

	// MaxSubscriptionAge is the absolute lifetime of a subscription. Streams
	// are closed at this age even if the call is still in progress.
	MaxSubscriptionAge time.Duration
}

// DefaultConfig returns sensible default stream settings.
func DefaultConfig() Config {
	return Config{
		PollInterval:       time.Second,
		MaxSubscriptionAge: 30 * time.Minute,
	}
}

// Publisher streams translated segments for one call per subscriber.
type Publisher struct {
	registry registry.Store
	segments store.SegmentStore
	metrics  *metrics.Metrics
	cfg      Config
}

// New creates a new stream publisher.
func New(reg registry.Store, segments store.SegmentStore, cfg Config) *Publisher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.MaxSubscriptionAge <= 0 {
		cfg.MaxSubscriptionAge = DefaultConfig().MaxSubscriptionAge
	}
	return &Publisher{
		registry: reg,
		segments: segments,
		metrics:  metrics.DefaultMetrics,
		cfg:      cfg,
	}
}

// ServeHTTP handles GET /v1/calls/{callID}/translations/stream.
//
// The optional "cursor" query parameter is the last sequence index the client
// has seen; segments with a higher index are replayed first, then the stream
// goes live. Omitted or invalid cursors replay from the start.
func (p *Publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	tenantID := r.Header.Get("X-Tenant-ID")

	call, err := p.registry.GetCall(r.Context(), callID)
	if err != nil || call.TenantID != tenantID {
		if err != nil && !errors.Is(err, registry.ErrNotFound) {
			lg := logging.WithComponent("stream")
			lg.Error().Err(err).
				Str("callId", callID).
				Msg("Call lookup failed")
		}
		http.NotFound(w, r)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	cursor := int64(0)
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			cursor = v
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := logging.WithCall(call.ID, call.TenantID)
	started := time.Now()
	p.metrics.RecordStreamOpened()
	defer func() {
		p.metrics.RecordStreamClosed(time.Since(started).Seconds())
	}()

	logger.Info().Int64("cursor", cursor).Msg("Stream subscription opened")

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.cfg.MaxSubscriptionAge)
	defer deadline.Stop()

	for {
		// Status snapshot first, then segments: any segment stored before the
		// terminal transition is delivered before the done event.
		status := call.Status
		if !status.IsTerminal() {
			current, err := p.registry.GetCall(r.Context(), call.ID)
			if err != nil {
				logger.Error().Err(err).Msg("Call lookup failed mid-stream, closing")
				return
			}
			status = current.Status
		}

		cursor, err = p.deliverSince(r.Context(), w, flusher, call, cursor)
		if err != nil {
			// Write errors mean the client went away.
			logger.Debug().Err(err).Msg("Stream write failed, closing")
			return
		}

		if status.IsTerminal() {
			p.writeDone(w, flusher, status)
			logger.Info().Int64("cursor", cursor).Msg("Stream ended with call")
			return
		}

		select {
		case <-r.Context().Done():
			logger.Debug().Msg("Subscriber disconnected")
			return
		case <-deadline.C:
			logger.Info().Dur("age", time.Since(started)).Msg("Stream reached max subscription age, closing")
			return
		case <-ticker.C:
		}
	}
}

func (p *Publisher) deliverSince(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, call models.Call, cursor int64) (int64, error) {
	segs, err := p.segments.ReadSince(ctx, call.TenantID, call.ID, cursor)
	if err != nil {
		return cursor, fmt.Errorf("stream: read segments: %w", err)
	}
	for _, seg := range segs {
		payload, err := json.Marshal(seg)
		if err != nil {
			return cursor, fmt.Errorf("stream: marshal segment: %w", err)
		}
		if _, err := fmt.Fprintf(w, "event: segment\ndata: %s\n\n", payload); err != nil {
			return cursor, err
		}
		cursor = seg.Seq
	}
	if len(segs) > 0 {
		flusher.Flush()
		p.metrics.RecordStreamDelivery(len(segs))
	}
	return cursor, nil
}

func (p *Publisher) writeDone(w http.ResponseWriter, flusher http.Flusher, status models.CallStatus) {
	fmt.Fprintf(w, "event: done\ndata: {\"status\":%q}\n\n", status)
	flusher.Flush()
}
