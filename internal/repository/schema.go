package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Table names for the three versioned entity families.
const (
	StepTemplateTable           = "step_template_versions"
	StepTemplateLatestTable     = "step_template_latest"
	WorkflowTemplateTable       = "workflow_template_versions"
	WorkflowTemplateLatestTable = "workflow_template_latest"
	WorkflowTable               = "workflow_versions"
	WorkflowLatestTable         = "workflow_latest"
)

// Schema is the DDL for every table this service owns. Applied by cmd/seed
// and by the repository tests.
const Schema = `
CREATE TABLE IF NOT EXISTS step_template_versions (
	id         TEXT        NOT NULL,
	ver        INT         NOT NULL CHECK (ver >= 1),
	rev        INT         NOT NULL DEFAULT 0,
	body       JSONB       NOT NULL,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (id, ver)
);
CREATE TABLE IF NOT EXISTS step_template_latest (
	id     TEXT PRIMARY KEY,
	latest INT  NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_template_versions (
	id         TEXT        NOT NULL,
	ver        INT         NOT NULL CHECK (ver >= 1),
	rev        INT         NOT NULL DEFAULT 0,
	body       JSONB       NOT NULL,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (id, ver)
);
CREATE TABLE IF NOT EXISTS workflow_template_latest (
	id     TEXT PRIMARY KEY,
	latest INT  NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_versions (
	id         TEXT        NOT NULL,
	ver        INT         NOT NULL CHECK (ver >= 1),
	rev        INT         NOT NULL DEFAULT 0,
	body       JSONB       NOT NULL,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (id, ver)
);
CREATE TABLE IF NOT EXISTS workflow_latest (
	id     TEXT PRIMARY KEY,
	latest INT  NOT NULL
);

CREATE TABLE IF NOT EXISTS drafts (
	id         TEXT        PRIMARY KEY,
	kind       TEXT        NOT NULL,
	uid        TEXT        NOT NULL,
	target_id  TEXT        NOT NULL,
	target_ver INT         NOT NULL,
	rev        INT         NOT NULL DEFAULT 0,
	body       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (kind, target_id, target_ver)
);

CREATE TABLE IF NOT EXISTS workflow_instances (
	id            TEXT        PRIMARY KEY,
	wf_id         TEXT        NOT NULL,
	wf_ver        INT         NOT NULL,
	wf            TEXT        NOT NULL,
	wf_status     TEXT        NOT NULL,
	st_statuses   JSONB       NOT NULL,
	st_attribs    JSONB       NOT NULL DEFAULT '[]',
	run_spec      JSONB       NOT NULL,
	input         JSONB,
	workflow      JSONB,
	assignment_id TEXT,
	ttl           TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS workflow_instances_wf_idx
	ON workflow_instances (wf, created_at);
CREATE INDEX IF NOT EXISTS workflow_instances_assignment_idx
	ON workflow_instances (assignment_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id         BIGSERIAL   PRIMARY KEY,
	uid        TEXT        NOT NULL,
	action     TEXT        NOT NULL,
	body       JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// ApplySchema creates all tables if they do not exist yet.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
