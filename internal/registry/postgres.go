package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"call-translation-service/internal/models"
)

// Schema is the SQL DDL for the calls table. Execute it via
// [Postgres.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS calls (
    id               TEXT PRIMARY KEY,
    tenant_id        TEXT NOT NULL,
    provider_call_id TEXT NOT NULL UNIQUE,
    status           TEXT NOT NULL DEFAULT 'initiated',
    live_translation BOOLEAN NOT NULL DEFAULT FALSE,
    transcription    BOOLEAN NOT NULL DEFAULT FALSE,
    source_language  TEXT NOT NULL DEFAULT '',
    target_language  TEXT NOT NULL DEFAULT '',
    recording_url    TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_calls_tenant ON calls(tenant_id);
`

// DB is the database interface used by [Postgres]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres is a [Store] backed by a PostgreSQL database.
type Postgres struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*Postgres)(nil)

// NewPostgres creates a new [Postgres] store using the given connection or
// pool. The caller is responsible for calling [Postgres.Migrate] before
// issuing queries.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("registry: migrate: %w", err)
	}
	return nil
}

// CreateCall inserts a new call record.
func (s *Postgres) CreateCall(ctx context.Context, call *models.Call) error {
	if call.Status == "" {
		call.Status = models.StatusInitiated
	}

	const query = `
		INSERT INTO calls (
			id, tenant_id, provider_call_id, status,
			live_translation, transcription, source_language, target_language,
			recording_url
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		call.ID, call.TenantID, call.ProviderCallID, string(call.Status),
		call.Modulations.LiveTranslationEnabled, call.Modulations.TranscriptionEnabled,
		call.Modulations.SourceLanguage, call.Modulations.TargetLanguage,
		call.RecordingURL,
	).Scan(&call.CreatedAt, &call.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("registry: call %q already exists", call.ID)
		}
		return fmt.Errorf("registry: create call: %w", err)
	}
	return nil
}

// Resolve returns the route for a provider call ID.
func (s *Postgres) Resolve(ctx context.Context, providerCallID string) (Route, error) {
	const query = `
		SELECT id, tenant_id, live_translation, transcription, source_language, target_language
		FROM calls WHERE provider_call_id = $1`

	var r Route
	err := s.db.QueryRow(ctx, query, providerCallID).Scan(
		&r.CallID, &r.TenantID,
		&r.Modulations.LiveTranslationEnabled, &r.Modulations.TranscriptionEnabled,
		&r.Modulations.SourceLanguage, &r.Modulations.TargetLanguage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Route{}, ErrNotFound
		}
		return Route{}, fmt.Errorf("registry: resolve: %w", err)
	}
	return r, nil
}

// GetCall returns the call record by internal ID.
func (s *Postgres) GetCall(ctx context.Context, callID string) (models.Call, error) {
	const query = `
		SELECT id, tenant_id, provider_call_id, status,
		       live_translation, transcription, source_language, target_language,
		       recording_url, created_at, updated_at
		FROM calls WHERE id = $1`

	c, err := scanCall(s.db.QueryRow(ctx, query, callID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Call{}, ErrNotFound
		}
		return models.Call{}, fmt.Errorf("registry: get call: %w", err)
	}
	return c, nil
}

// UpdateStatus applies a lifecycle transition inside a transaction so that
// concurrent lifecycle webhooks for the same call serialize on the row lock.
func (s *Postgres) UpdateStatus(ctx context.Context, providerCallID string, status models.CallStatus, recordingURL string) (models.Call, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return models.Call{}, fmt.Errorf("registry: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const selectQuery = `
		SELECT id, tenant_id, provider_call_id, status,
		       live_translation, transcription, source_language, target_language,
		       recording_url, created_at, updated_at
		FROM calls WHERE provider_call_id = $1 FOR UPDATE`

	c, err := scanCall(tx.QueryRow(ctx, selectQuery, providerCallID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Call{}, ErrNotFound
		}
		return models.Call{}, fmt.Errorf("registry: update status: %w", err)
	}

	if c.Status.IsTerminal() {
		return models.Call{}, ErrTerminal
	}
	if statusRank(status) <= statusRank(c.Status) {
		// Late or duplicated lifecycle webhook; keep the current state.
		if err := tx.Commit(ctx); err != nil {
			return models.Call{}, fmt.Errorf("registry: commit: %w", err)
		}
		return c, nil
	}

	const updateQuery = `
		UPDATE calls
		SET status = $2,
		    recording_url = CASE WHEN $3 <> '' THEN $3 ELSE recording_url END,
		    updated_at = now()
		WHERE id = $1
		RETURNING recording_url, updated_at`

	err = tx.QueryRow(ctx, updateQuery, c.ID, string(status), recordingURL).
		Scan(&c.RecordingURL, &c.UpdatedAt)
	if err != nil {
		return models.Call{}, fmt.Errorf("registry: update status: %w", err)
	}
	c.Status = status

	if err := tx.Commit(ctx); err != nil {
		return models.Call{}, fmt.Errorf("registry: commit: %w", err)
	}
	return c, nil
}

func scanCall(row pgx.Row) (models.Call, error) {
	var c models.Call
	var status string
	err := row.Scan(
		&c.ID, &c.TenantID, &c.ProviderCallID, &status,
		&c.Modulations.LiveTranslationEnabled, &c.Modulations.TranscriptionEnabled,
		&c.Modulations.SourceLanguage, &c.Modulations.TargetLanguage,
		&c.RecordingURL, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return models.Call{}, err
	}
	c.Status = models.CallStatus(status)
	return c, nil
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
