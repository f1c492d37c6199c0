package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"call-translation-service/internal/models"
)

// Schema is the SQL DDL for the segment and evidence tables. Execute it via
// [Postgres.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS translated_segments (
    call_id            TEXT NOT NULL,
    tenant_id          TEXT NOT NULL,
    seq                BIGINT NOT NULL,
    original_text      TEXT NOT NULL,
    translated_text    TEXT NOT NULL,
    source_language    TEXT NOT NULL DEFAULT '',
    target_language    TEXT NOT NULL DEFAULT '',
    confidence         DOUBLE PRECISION NOT NULL DEFAULT 0,
    provider_timestamp BIGINT NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (call_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_translated_segments_tenant ON translated_segments(tenant_id, call_id);

CREATE TABLE IF NOT EXISTS evidence_transcripts (
    call_id         TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    run_state       TEXT NOT NULL DEFAULT 'queued',
    original_text   TEXT NOT NULL DEFAULT '',
    translated_text TEXT NOT NULL DEFAULT '',
    confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
    failure_reason  TEXT NOT NULL DEFAULT '',
    generated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_evidence_transcripts_tenant ON evidence_transcripts(tenant_id);
`

// appendAttempts bounds the unique-violation retry loop in Append. Each
// retry recomputes MAX(seq)+1, so contention on a single call resolves in a
// handful of rounds.
const appendAttempts = 5

// DB is the database interface used by [Postgres]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres implements SegmentStore and EvidenceStore on PostgreSQL.
type Postgres struct {
	db DB
}

// Compile-time interface checks.
var (
	_ SegmentStore  = (*Postgres)(nil)
	_ EvidenceStore = (*Postgres)(nil)
)

// NewPostgres creates a new [Postgres] store using the given connection or
// pool. The caller is responsible for calling [Postgres.Migrate] before
// issuing queries.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append inserts the segment with seq = MAX(seq)+1 for its call. The
// (call_id, seq) primary key makes the computed index race-safe: when two
// appends for the same call collide, the loser gets a unique violation and
// retries with a fresh index.
func (s *Postgres) Append(ctx context.Context, seg *models.TranslatedSegment) (int64, error) {
	const query = `
		INSERT INTO translated_segments (
			call_id, tenant_id, seq,
			original_text, translated_text, source_language, target_language,
			confidence, provider_timestamp
		) VALUES (
			$1, $2,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM translated_segments WHERE call_id = $1),
			$3, $4, $5, $6, $7, $8
		)
		RETURNING seq, created_at`

	var lastErr error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		err := s.db.QueryRow(ctx, query,
			seg.CallID, seg.TenantID,
			seg.OriginalText, seg.TranslatedText, seg.SourceLanguage, seg.TargetLanguage,
			seg.Confidence, seg.ProviderTimestamp,
		).Scan(&seg.Seq, &seg.CreatedAt)
		if err == nil {
			return seg.Seq, nil
		}
		if !isDuplicateKeyError(err) {
			return 0, fmt.Errorf("store: append: %w", err)
		}
		lastErr = err
	}
	return 0, fmt.Errorf("store: append: sequence contention not resolved after %d attempts: %w", appendAttempts, lastErr)
}

// ReadSince returns segments with Seq > lastSeen in ascending order.
func (s *Postgres) ReadSince(ctx context.Context, tenantID, callID string, lastSeen int64) ([]models.TranslatedSegment, error) {
	const query = `
		SELECT call_id, tenant_id, seq,
		       original_text, translated_text, source_language, target_language,
		       confidence, provider_timestamp, created_at
		FROM translated_segments
		WHERE tenant_id = $1 AND call_id = $2 AND seq > $3
		ORDER BY seq ASC`

	rows, err := s.db.Query(ctx, query, tenantID, callID, lastSeen)
	if err != nil {
		return nil, fmt.Errorf("store: read since: %w", err)
	}
	defer rows.Close()

	var out []models.TranslatedSegment
	for rows.Next() {
		var seg models.TranslatedSegment
		if err := rows.Scan(
			&seg.CallID, &seg.TenantID, &seg.Seq,
			&seg.OriginalText, &seg.TranslatedText, &seg.SourceLanguage, &seg.TargetLanguage,
			&seg.Confidence, &seg.ProviderTimestamp, &seg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: read since: scan: %w", err)
		}
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read since: %w", err)
	}
	return out, nil
}

// Upsert stores or replaces the evidence transcript for a call.
func (s *Postgres) Upsert(ctx context.Context, transcript *models.EvidenceTranscript) error {
	const query = `
		INSERT INTO evidence_transcripts (
			call_id, tenant_id, run_state,
			original_text, translated_text, confidence, failure_reason, generated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		ON CONFLICT (call_id) DO UPDATE SET
			run_state       = EXCLUDED.run_state,
			original_text   = EXCLUDED.original_text,
			translated_text = EXCLUDED.translated_text,
			confidence      = EXCLUDED.confidence,
			failure_reason  = EXCLUDED.failure_reason,
			generated_at    = now()
		RETURNING generated_at`

	err := s.db.QueryRow(ctx, query,
		transcript.CallID, transcript.TenantID, transcript.RunState,
		transcript.OriginalText, transcript.TranslatedText,
		transcript.Confidence, transcript.FailureReason,
	).Scan(&transcript.GeneratedAt)
	if err != nil {
		return fmt.Errorf("store: upsert evidence: %w", err)
	}
	return nil
}

// Get returns the evidence transcript for a call.
func (s *Postgres) Get(ctx context.Context, tenantID, callID string) (models.EvidenceTranscript, error) {
	const query = `
		SELECT call_id, tenant_id, run_state,
		       original_text, translated_text, confidence, failure_reason, generated_at
		FROM evidence_transcripts
		WHERE tenant_id = $1 AND call_id = $2`

	var t models.EvidenceTranscript
	err := s.db.QueryRow(ctx, query, tenantID, callID).Scan(
		&t.CallID, &t.TenantID, &t.RunState,
		&t.OriginalText, &t.TranslatedText, &t.Confidence, &t.FailureReason, &t.GeneratedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.EvidenceTranscript{}, ErrNotFound
		}
		return models.EvidenceTranscript{}, fmt.Errorf("store: get evidence: %w", err)
	}
	return t, nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
