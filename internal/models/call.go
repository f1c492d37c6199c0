// Package models defines the data structures shared across the call
// translation pipeline.
package models

import "time"

// CallStatus is the lifecycle status of a call.
type CallStatus string

const (
	StatusInitiated  CallStatus = "initiated"
	StatusAnswered   CallStatus = "answered"
	StatusInProgress CallStatus = "in_progress"
	StatusCompleted  CallStatus = "completed"
	StatusFailed     CallStatus = "failed"
)

// IsTerminal returns true once the call has ended. Terminal calls are
// immutable: no further lifecycle transitions are accepted.
func (s CallStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Modulations holds the per-call feature toggles resolved once via the
// registry. These are set when the call is provisioned and never change
// during the call.
type Modulations struct {
	LiveTranslationEnabled bool   `json:"liveTranslationEnabled"`
	TranscriptionEnabled   bool   `json:"transcriptionEnabled"`
	SourceLanguage         string `json:"sourceLanguage"`
	TargetLanguage         string `json:"targetLanguage"`
}

// Call is one telephone conversation. The provider call ID is the external
// correlation key used by every inbound webhook.
type Call struct {
	ID             string      `json:"id"`
	TenantID       string      `json:"tenantId"`
	ProviderCallID string      `json:"providerCallId"`
	Status         CallStatus  `json:"status"`
	Modulations    Modulations `json:"modulations"`
	RecordingURL   string      `json:"recordingUrl,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// TranslatedSegment is one translated utterance belonging to a call.
// Segments are append-only: Seq is assigned at write time, strictly
// increasing per call, and reflects arrival order.
type TranslatedSegment struct {
	CallID            string    `json:"callId"`
	TenantID          string    `json:"tenantId"`
	Seq               int64     `json:"seq"`
	OriginalText      string    `json:"originalText"`
	TranslatedText    string    `json:"translatedText"`
	SourceLanguage    string    `json:"sourceLanguage"`
	TargetLanguage    string    `json:"targetLanguage"`
	Confidence        float64   `json:"confidence"`
	ProviderTimestamp int64     `json:"providerTimestamp"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Evidence run states, mirroring the transcription job lifecycle at the
// durable provider.
const (
	EvidenceQueued      = "queued"
	EvidenceSubmitted   = "submitted"
	EvidenceTranscribed = "transcribed"
	EvidenceCompleted   = "completed"
	EvidenceFailed      = "failed"
)

// EvidenceTranscript is the durable, high-fidelity whole-call transcript and
// its full translation. It is produced asynchronously after call end and is
// the canonical record; it may diverge from the concatenated live segments.
type EvidenceTranscript struct {
	CallID         string    `json:"callId"`
	TenantID       string    `json:"tenantId"`
	RunState       string    `json:"runState"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	Confidence     float64   `json:"confidence"`
	FailureReason  string    `json:"failureReason,omitempty"`
	GeneratedAt    time.Time `json:"generatedAt"`
}
