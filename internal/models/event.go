package models

// EventType identifies a normalized provider webhook event.
type EventType string

const (
	EventCallInitiated EventType = "call.initiated"
	EventCallAnswered  EventType = "call.answered"
	EventTranscription EventType = "call.transcription"
	EventCallHangup    EventType = "call.hangup"
	EventCallFailed    EventType = "call.failed"
)

// Event is the normalized form of a provider webhook payload. The ingress
// produces exactly this record and nothing else; all side effects happen
// downstream.
type Event struct {
	Type           EventType `json:"eventType"`
	ProviderCallID string    `json:"providerCallId"`
	Text           string    `json:"text,omitempty"`
	Confidence     float64   `json:"confidence,omitempty"`
	RecordingURL   string    `json:"recordingUrl,omitempty"`
	Timestamp      int64     `json:"timestamp"`
}

// SegmentEvent is the outbound bus event emitted for every stored segment.
type SegmentEvent struct {
	EventType string            `json:"eventType"`
	Segment   TranslatedSegment `json:"segment"`
}

// LifecycleEvent is the outbound bus event emitted for every call status
// transition. It doubles as the audit trail for call state changes.
type LifecycleEvent struct {
	EventType string     `json:"eventType"`
	CallID    string     `json:"callId"`
	TenantID  string     `json:"tenantId"`
	Status    CallStatus `json:"status"`
	Timestamp int64      `json:"timestamp"`
}

// EvidenceRunEvent is the outbound bus event emitted for every evidence run
// state change, on the same audit topic as lifecycle transitions.
type EvidenceRunEvent struct {
	EventType string `json:"eventType"`
	CallID    string `json:"callId"`
	TenantID  string `json:"tenantId"`
	RunState  string `json:"runState"`
	Timestamp int64  `json:"timestamp"`
}
