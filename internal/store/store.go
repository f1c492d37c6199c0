// Package store persists translated segments and evidence transcripts.
//
// The segment store is the append-only backbone of the live pipeline:
// sequence indices are assigned at write time, strictly increasing per call,
// and reflect arrival order. The evidence store holds the canonical post-call
// record produced by the evidence pipeline.
package store

import (
	"context"
	"errors"

	"call-translation-service/internal/models"
)

// ErrNotFound means no record exists for the given key.
var ErrNotFound = errors.New("store: not found")

// SegmentStore persists translated segments with per-call sequence numbers.
type SegmentStore interface {
	// Append stores a segment, assigning the next sequence index for its
	// call. Two concurrent appends for the same call never receive the same
	// index. The assigned index is written back to seg.Seq and returned.
	Append(ctx context.Context, seg *models.TranslatedSegment) (int64, error)

	// ReadSince returns all segments of the call with Seq > lastSeen, in
	// ascending Seq order. lastSeen = -1 (or 0) replays from the start.
	// Every read is tenant-scoped.
	ReadSince(ctx context.Context, tenantID, callID string, lastSeen int64) ([]models.TranslatedSegment, error)
}

// EvidenceStore persists the canonical post-call transcript. There is at
// most one record per call; Upsert lets the evidence pipeline move the
// record through its run states.
type EvidenceStore interface {
	Upsert(ctx context.Context, transcript *models.EvidenceTranscript) error
	Get(ctx context.Context, tenantID, callID string) (models.EvidenceTranscript, error)
}
