package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAuditStore is a PostgreSQL implementation of the AuditStore
// interface.
type PostgresAuditStore struct {
	db *pgxpool.Pool
}

// NewPostgresAuditStore creates a new PostgresAuditStore.
func NewPostgresAuditStore(db *pgxpool.Pool) *PostgresAuditStore {
	return &PostgresAuditStore{db: db}
}

// Write appends one audit record.
func (s *PostgresAuditStore) Write(ctx context.Context, uid, action string, body []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_log (uid, action, body) VALUES ($1, $2, $3)`,
		uid, action, string(body))
	if err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}
