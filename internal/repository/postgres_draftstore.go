package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/pkg/models"
)

// PostgresDraftStore is a PostgreSQL implementation of the DraftStore
// interface. Template drafts and workflow drafts share one table, separated
// by the kind column.
type PostgresDraftStore struct {
	db *pgxpool.Pool
}

// NewPostgresDraftStore creates a new PostgresDraftStore.
func NewPostgresDraftStore(db *pgxpool.Pool) *PostgresDraftStore {
	return &PostgresDraftStore{db: db}
}

// Create inserts a draft conditionally. A conflict on either the primary key
// or the per-target uniqueness constraint means a draft already exists.
func (s *PostgresDraftStore) Create(ctx context.Context, rec *DraftRecord) error {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO drafts (id, kind, uid, target_id, target_ver, rev, body)
			VALUES ($1, $2, $3, $4, $5, 0, $6)
			ON CONFLICT DO NOTHING`,
		rec.ID, rec.Kind, rec.UID, rec.TargetID, rec.TargetVer, rec.Body)
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("a draft for %s %q v%d already exists", rec.Kind, rec.TargetID, rec.TargetVer)
	}
	rec.Rev = 0
	return nil
}

// Update rewrites the draft body under a rev check. The owner and target
// columns are deliberately not in the SET list; the draft's identity is
// frozen at creation.
func (s *PostgresDraftStore) Update(ctx context.Context, rec *DraftRecord) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE drafts SET body = $2, rev = rev + 1, updated_at = now()
			WHERE id = $1 AND rev = $3`,
		rec.ID, rec.Body, rec.Rev)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.db.QueryRow(ctx, `SELECT true FROM drafts WHERE id = $1`, rec.ID).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("draft %q does not exist", rec.ID)
		}
		if err != nil {
			return fmt.Errorf("check draft: %w", err)
		}
		return apperr.Conflict("draft %q was changed elsewhere, revision %d is stale", rec.ID, rec.Rev)
	}
	rec.Rev++
	return nil
}

// Delete removes the draft unconditionally. Ownership is checked by the
// service before calling.
func (s *PostgresDraftStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM drafts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("draft %q does not exist", id)
	}
	return nil
}

// Find retrieves a draft by id.
func (s *PostgresDraftStore) Find(ctx context.Context, id string) (*DraftRecord, error) {
	rec := &DraftRecord{}
	err := s.db.QueryRow(ctx,
		`SELECT id, kind, uid, target_id, target_ver, rev, body, created_at, updated_at
			FROM drafts WHERE id = $1`, id).
		Scan(&rec.ID, &rec.Kind, &rec.UID, &rec.TargetID, &rec.TargetVer, &rec.Rev, &rec.Body, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("draft %q does not exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find draft: %w", err)
	}
	return rec, nil
}

// ListByOwner returns all drafts of one kind owned by uid, oldest first.
func (s *PostgresDraftStore) ListByOwner(ctx context.Context, kind models.DraftKind, uid string) ([]*DraftRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, kind, uid, target_id, target_ver, rev, body, created_at, updated_at
			FROM drafts WHERE kind = $1 AND uid = $2 ORDER BY created_at`, kind, uid)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var recs []*DraftRecord
	for rows.Next() {
		rec := &DraftRecord{}
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.UID, &rec.TargetID, &rec.TargetVer, &rec.Rev, &rec.Body, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
