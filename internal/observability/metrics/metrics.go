// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "call_translation"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Webhook ingress metrics
	WebhooksReceived *prometheus.CounterVec
	WebhooksRejected prometheus.Counter
	WebhooksDropped  *prometheus.CounterVec

	// Live pipeline metrics
	SegmentsTranslated   prometheus.Counter
	TranslationFallbacks prometheus.Counter
	TranslationLatency   prometheus.Histogram

	// Segment store metrics
	SegmentsStored       prometheus.Counter
	SegmentAppendRetries prometheus.Counter
	SegmentAppendDropped prometheus.Counter

	// Stream publisher metrics
	StreamSubscriptionsTotal  prometheus.Counter
	StreamSubscriptionsActive prometheus.Gauge
	StreamSubscriptionAge     prometheus.Histogram
	StreamSegmentsDelivered   prometheus.Counter

	// Call lifecycle metrics
	CallTransitions *prometheus.CounterVec

	// Evidence pipeline metrics
	EvidenceRuns    *prometheus.CounterVec
	EvidenceRetries prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		WebhooksReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Total number of provider webhooks received",
		}, []string{"event_type"}),
		WebhooksRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_rejected_total",
			Help:      "Total number of webhooks rejected for invalid signatures",
		}),
		WebhooksDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_dropped_total",
			Help:      "Total number of webhooks acknowledged but dropped",
		}, []string{"reason"}),

		SegmentsTranslated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_translated_total",
			Help:      "Total number of utterances translated",
		}),
		TranslationFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_fallbacks_total",
			Help:      "Total number of segments stored with the fallback marker",
		}),
		TranslationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_latency_seconds",
			Help:      "Translation provider latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		SegmentsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_stored_total",
			Help:      "Total number of translated segments appended to the store",
		}),
		SegmentAppendRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_append_retries_total",
			Help:      "Total number of segment append retries",
		}),
		SegmentAppendDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_append_dropped_total",
			Help:      "Total number of segments dropped after exhausting append retries",
		}),

		StreamSubscriptionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_subscriptions_total",
			Help:      "Total number of live stream subscriptions opened",
		}),
		StreamSubscriptionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscriptions_active",
			Help:      "Number of currently open live stream subscriptions",
		}),
		StreamSubscriptionAge: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_subscription_age_seconds",
			Help:      "Duration of live stream subscriptions in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 600, 1800},
		}),
		StreamSegmentsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_segments_delivered_total",
			Help:      "Total number of segments delivered over live streams",
		}),

		CallTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_transitions_total",
			Help:      "Total number of call lifecycle transitions",
		}, []string{"status"}),

		EvidenceRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evidence_runs_total",
			Help:      "Total number of evidence pipeline runs by outcome",
		}, []string{"outcome"}),
		EvidenceRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evidence_retries_total",
			Help:      "Total number of evidence pipeline step retries",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordWebhookReceived records a verified webhook by event type.
func (m *Metrics) RecordWebhookReceived(eventType string) {
	m.WebhooksReceived.WithLabelValues(eventType).Inc()
}

// RecordWebhookRejected records a webhook rejected for a bad signature.
func (m *Metrics) RecordWebhookRejected() {
	m.WebhooksRejected.Inc()
}

// RecordWebhookDropped records a webhook acknowledged but dropped.
func (m *Metrics) RecordWebhookDropped(reason string) {
	m.WebhooksDropped.WithLabelValues(reason).Inc()
}

// RecordTranslation records a translation attempt.
func (m *Metrics) RecordTranslation(fallback bool, latencySeconds float64) {
	m.SegmentsTranslated.Inc()
	m.TranslationLatency.Observe(latencySeconds)
	if fallback {
		m.TranslationFallbacks.Inc()
	}
}

// RecordSegmentStored records a successful segment append.
func (m *Metrics) RecordSegmentStored() {
	m.SegmentsStored.Inc()
}

// RecordAppendRetry records one segment append retry.
func (m *Metrics) RecordAppendRetry() {
	m.SegmentAppendRetries.Inc()
}

// RecordAppendDropped records a segment dropped after exhausted retries.
func (m *Metrics) RecordAppendDropped() {
	m.SegmentAppendDropped.Inc()
}

// RecordStreamOpened records a new live stream subscription.
func (m *Metrics) RecordStreamOpened() {
	m.StreamSubscriptionsTotal.Inc()
	m.StreamSubscriptionsActive.Inc()
}

// RecordStreamClosed records a subscription ending.
func (m *Metrics) RecordStreamClosed(ageSeconds float64) {
	m.StreamSubscriptionsActive.Dec()
	m.StreamSubscriptionAge.Observe(ageSeconds)
}

// RecordStreamDelivery records segments delivered to a subscriber.
func (m *Metrics) RecordStreamDelivery(n int) {
	m.StreamSegmentsDelivered.Add(float64(n))
}

// RecordCallTransition records a call lifecycle transition.
func (m *Metrics) RecordCallTransition(status string) {
	m.CallTransitions.WithLabelValues(status).Inc()
}

// RecordEvidenceRun records an evidence pipeline run outcome.
func (m *Metrics) RecordEvidenceRun(outcome string) {
	m.EvidenceRuns.WithLabelValues(outcome).Inc()
}

// RecordEvidenceRetry records one evidence pipeline step retry.
func (m *Metrics) RecordEvidenceRetry() {
	m.EvidenceRetries.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
