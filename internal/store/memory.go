package store

import (
	"context"
	"sync"
	"time"

	"call-translation-service/internal/models"
)

// Memory implements SegmentStore and EvidenceStore in process memory. Used
// in tests and in DB-less dev mode.
type Memory struct {
	mu       sync.RWMutex
	segments map[string][]models.TranslatedSegment // keyed by call ID, ascending Seq
	evidence map[string]models.EvidenceTranscript  // keyed by call ID
}

// Compile-time interface checks.
var (
	_ SegmentStore  = (*Memory)(nil)
	_ EvidenceStore = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		segments: make(map[string][]models.TranslatedSegment),
		evidence: make(map[string]models.EvidenceTranscript),
	}
}

// Append stores a segment under the next per-call sequence index.
func (m *Memory) Append(ctx context.Context, seg *models.TranslatedSegment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.segments[seg.CallID]
	var next int64 = 1
	if n := len(existing); n > 0 {
		next = existing[n-1].Seq + 1
	}

	seg.Seq = next
	seg.CreatedAt = time.Now().UTC()
	m.segments[seg.CallID] = append(existing, *seg)
	return next, nil
}

// ReadSince returns segments with Seq > lastSeen in ascending order.
func (m *Memory) ReadSince(ctx context.Context, tenantID, callID string, lastSeen int64) ([]models.TranslatedSegment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.TranslatedSegment
	for _, seg := range m.segments[callID] {
		if seg.TenantID != tenantID {
			continue
		}
		if seg.Seq > lastSeen {
			out = append(out, seg)
		}
	}
	return out, nil
}

// Upsert stores or replaces the evidence transcript for a call.
func (m *Memory) Upsert(ctx context.Context, transcript *models.EvidenceTranscript) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	transcript.GeneratedAt = time.Now().UTC()
	m.evidence[transcript.CallID] = *transcript
	return nil
}

// Get returns the evidence transcript for a call.
func (m *Memory) Get(ctx context.Context, tenantID, callID string) (models.EvidenceTranscript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.evidence[callID]
	if !ok || t.TenantID != tenantID {
		return models.EvidenceTranscript{}, ErrNotFound
	}
	return t, nil
}
