package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/internal/logging"
)

// PostgresVersionStore is a PostgreSQL implementation of the VersionStore
// protocol, instantiated once per versioned entity family.
type PostgresVersionStore struct {
	db          *pgxpool.Pool
	logger      *logging.Logger
	entity      string // human name used in error messages
	table       string
	latestTable string
}

// NewPostgresVersionStore creates a version store over the given table pair.
func NewPostgresVersionStore(db *pgxpool.Pool, logger *logging.Logger, entity, table, latestTable string) *PostgresVersionStore {
	return &PostgresVersionStore{
		db:          db,
		logger:      logger,
		entity:      entity,
		table:       table,
		latestTable: latestTable,
	}
}

// NewStepTemplateStore creates the version store for step templates.
func NewStepTemplateStore(db *pgxpool.Pool, logger *logging.Logger) *PostgresVersionStore {
	return NewPostgresVersionStore(db, logger, "step template", StepTemplateTable, StepTemplateLatestTable)
}

// NewWorkflowTemplateStore creates the version store for workflow templates.
func NewWorkflowTemplateStore(db *pgxpool.Pool, logger *logging.Logger) *PostgresVersionStore {
	return NewPostgresVersionStore(db, logger, "workflow template", WorkflowTemplateTable, WorkflowTemplateLatestTable)
}

// NewWorkflowStore creates the version store for workflows.
func NewWorkflowStore(db *pgxpool.Pool, logger *logging.Logger) *PostgresVersionStore {
	return NewPostgresVersionStore(db, logger, "workflow", WorkflowTable, WorkflowLatestTable)
}

// CreateVersion writes the numbered record conditionally, then advances the
// latest pointer best-effort.
func (s *PostgresVersionStore) CreateVersion(ctx context.Context, rec *VersionRecord) error {
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, ver, rev, body, created_by)
			VALUES ($1, $2, 0, $3, $4)
			ON CONFLICT (id, ver) DO NOTHING`, s.table),
		rec.ID, rec.Ver, rec.Body, rec.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert %s version: %w", s.entity, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("%s %q v%d already exists", s.entity, rec.ID, rec.Ver)
	}
	rec.Rev = 0

	s.advanceLatest(ctx, rec.ID, rec.Ver)
	return nil
}

// advanceLatest moves the pointer forward monotonically. Zero rows affected
// means a concurrent newer version won the race; that loss is intentional and
// not surfaced to the caller.
func (s *PostgresVersionStore) advanceLatest(ctx context.Context, id string, ver int) {
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, latest) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET latest = EXCLUDED.latest
			WHERE %s.latest < EXCLUDED.latest`, s.latestTable, s.latestTable),
		id, ver)
	if err != nil {
		s.logger.Error("latest pointer update failed", "entity", s.entity, "id", id, "ver", ver, "error", err)
		return
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("latest pointer already ahead", "entity", s.entity, "id", id, "ver", ver)
	}
}

// UpdateVersion rewrites an existing version under a rev check. On success the
// record's rev is advanced to the stored value.
func (s *PostgresVersionStore) UpdateVersion(ctx context.Context, rec *VersionRecord) error {
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET body = $3, rev = rev + 1, updated_at = now()
			WHERE id = $1 AND ver = $2 AND rev = $4`, s.table),
		rec.ID, rec.Ver, rec.Body, rec.Rev)
	if err != nil {
		return fmt.Errorf("update %s version: %w", s.entity, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a vanished record from a stale revision.
		var exists bool
		err := s.db.QueryRow(ctx,
			fmt.Sprintf(`SELECT true FROM %s WHERE id = $1 AND ver = $2`, s.table),
			rec.ID, rec.Ver).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("%s %q v%d does not exist", s.entity, rec.ID, rec.Ver)
		}
		if err != nil {
			return fmt.Errorf("check %s version: %w", s.entity, err)
		}
		return apperr.Conflict("%s %q v%d was changed by someone else, revision %d is stale", s.entity, rec.ID, rec.Ver, rec.Rev)
	}
	rec.Rev++

	s.advanceLatest(ctx, rec.ID, rec.Ver)
	return nil
}

// FindVersion retrieves one numbered version.
func (s *PostgresVersionStore) FindVersion(ctx context.Context, id string, ver int) (*VersionRecord, error) {
	rec := &VersionRecord{}
	var createdBy *string
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, ver, rev, body, created_by, created_at, updated_at
			FROM %s WHERE id = $1 AND ver = $2`, s.table),
		id, ver).Scan(&rec.ID, &rec.Ver, &rec.Rev, &rec.Body, &createdBy, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("%s %q v%d does not exist", s.entity, id, ver)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s version: %w", s.entity, err)
	}
	if createdBy != nil {
		rec.CreatedBy = *createdBy
	}
	return rec, nil
}

// LatestVersion returns the pointer value for id, or 0 when id has no
// published version.
func (s *PostgresVersionStore) LatestVersion(ctx context.Context, id string) (int, error) {
	var latest int
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT latest FROM %s WHERE id = $1`, s.latestTable), id).Scan(&latest)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s latest pointer: %w", s.entity, err)
	}
	return latest, nil
}

// ListVersions returns every numbered version of id, newest first. The latest
// pointer lives in its own table and can never appear here.
func (s *PostgresVersionStore) ListVersions(ctx context.Context, id string) ([]*VersionRecord, error) {
	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT id, ver, rev, body, created_by, created_at, updated_at
			FROM %s WHERE id = $1 ORDER BY ver DESC`, s.table), id)
	if err != nil {
		return nil, fmt.Errorf("list %s versions: %w", s.entity, err)
	}
	defer rows.Close()
	return scanVersionRecords(rows)
}

// List returns the latest version of every id.
func (s *PostgresVersionStore) List(ctx context.Context) ([]*VersionRecord, error) {
	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT v.id, v.ver, v.rev, v.body, v.created_by, v.created_at, v.updated_at
			FROM %s v JOIN %s l ON v.id = l.id AND v.ver = l.latest
			ORDER BY v.id`, s.table, s.latestTable))
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", s.entity, err)
	}
	defer rows.Close()
	return scanVersionRecords(rows)
}

func scanVersionRecords(rows pgx.Rows) ([]*VersionRecord, error) {
	var recs []*VersionRecord
	for rows.Next() {
		rec := &VersionRecord{}
		var createdBy *string
		if err := rows.Scan(&rec.ID, &rec.Ver, &rec.Rev, &rec.Body, &createdBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if createdBy != nil {
			rec.CreatedBy = *createdBy
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
