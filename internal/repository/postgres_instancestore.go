package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/pkg/models"
)

// PostgresInstanceStore is a PostgreSQL implementation of the InstanceStore
// interface. Step-level writes are single-statement JSONB expressions scoped
// to one array index, so handlers reporting different steps never overwrite
// each other's fields.
type PostgresInstanceStore struct {
	db *pgxpool.Pool
}

// NewPostgresInstanceStore creates a new PostgresInstanceStore.
func NewPostgresInstanceStore(db *pgxpool.Pool) *PostgresInstanceStore {
	return &PostgresInstanceStore{db: db}
}

// Create inserts the instance with a "does not already exist" condition.
// Instance ids are generated, so a collision is unexpected but still guarded.
func (s *PostgresInstanceStore) Create(ctx context.Context, inst *models.WorkflowInstance) error {
	statuses, err := json.Marshal(inst.StStatuses)
	if err != nil {
		return fmt.Errorf("marshal step statuses: %w", err)
	}
	attribs, err := json.Marshal(emptyIfNil(inst.StAttribs))
	if err != nil {
		return fmt.Errorf("marshal step attribs: %w", err)
	}
	runSpec, err := json.Marshal(inst.RunSpec)
	if err != nil {
		return fmt.Errorf("marshal run spec: %w", err)
	}
	input, err := json.Marshal(inst.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	workflow, err := json.Marshal(inst.Workflow)
	if err != nil {
		return fmt.Errorf("marshal workflow snapshot: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO workflow_instances
			(id, wf_id, wf_ver, wf, wf_status, st_statuses, st_attribs, run_spec, input, workflow, assignment_id, ttl)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12)
			ON CONFLICT (id) DO NOTHING`,
		inst.ID, inst.WfID, inst.WfVer, inst.Wf, inst.WfStatus,
		string(statuses), string(attribs), string(runSpec), string(input), string(workflow),
		inst.AssignmentID, inst.TTL)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("workflow instance %q already exists", inst.ID)
	}
	return nil
}

func emptyIfNil(a []models.StepAttribs) []models.StepAttribs {
	if a == nil {
		return []models.StepAttribs{}
	}
	return a
}

// Find retrieves one instance by id.
func (s *PostgresInstanceStore) Find(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, wf_id, wf_ver, wf, wf_status, st_statuses, st_attribs, run_spec, input, workflow, assignment_id, ttl, created_at, updated_at
			FROM workflow_instances WHERE id = $1`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("workflow instance %q does not exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find instance: %w", err)
	}
	return inst, nil
}

// ListByWorkflow lists instances of one workflow version chronologically.
func (s *PostgresInstanceStore) ListByWorkflow(ctx context.Context, key string) ([]*models.WorkflowInstance, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, wf_id, wf_ver, wf, wf_status, st_statuses, st_attribs, run_spec, input, workflow, assignment_id, ttl, created_at, updated_at
			FROM workflow_instances WHERE wf = $1 ORDER BY created_at`, key)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var insts []*models.WorkflowInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		insts = append(insts, inst)
	}
	return insts, rows.Err()
}

// UpdateWorkflowStatus sets the overall status only; step fields are not
// touched.
func (s *PostgresInstanceStore) UpdateWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE workflow_instances SET wf_status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update instance status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("workflow instance %q does not exist", id)
	}
	return nil
}

// UpdateStepStatus patches one entry of the status array in place. Removed
// keys are dropped before the patch object is merged over the entry.
func (s *PostgresInstanceStore) UpdateStepStatus(ctx context.Context, id string, index int, patch StepStatusPatch) error {
	set := map[string]any{"status": patch.Status}
	var remove []string
	if patch.Msg != nil {
		if *patch.Msg == "" {
			remove = append(remove, "msg")
		} else {
			set["msg"] = *patch.Msg
		}
	}
	switch {
	case patch.StartTime != nil:
		set["startTime"] = patch.StartTime.UTC().Format(time.RFC3339Nano)
	case patch.ClearStartTime:
		remove = append(remove, "startTime")
	}
	switch {
	case patch.EndTime != nil:
		set["endTime"] = patch.EndTime.UTC().Format(time.RFC3339Nano)
	case patch.ClearEndTime:
		remove = append(remove, "endTime")
	}
	if remove == nil {
		remove = []string{}
	}
	patchJSON, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal status patch: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE workflow_instances
			SET st_statuses = jsonb_set(
				st_statuses,
				ARRAY[($2::int)::text],
				((st_statuses -> $2::int) - $4::text[]) || $3::jsonb),
			updated_at = now()
			WHERE id = $1 AND jsonb_array_length(st_statuses) > $2::int`,
		id, index, string(patchJSON), remove)
	if err != nil {
		return fmt.Errorf("update step status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.stepMiss(ctx, id, index)
	}
	return nil
}

// SaveStepAttribs writes the attribute bag at index. When earlier steps never
// reported attributes the array is padded with empty objects in the same
// statement, preserving index alignment with the status array.
func (s *PostgresInstanceStore) SaveStepAttribs(ctx context.Context, id string, index int, attribs models.StepAttribs) error {
	body, err := json.Marshal(attribs)
	if err != nil {
		return fmt.Errorf("marshal step attribs: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE workflow_instances
			SET st_attribs = (
				CASE WHEN jsonb_array_length(st_attribs) > $2
				THEN jsonb_set(st_attribs, ARRAY[$2::text], $3::jsonb)
				ELSE st_attribs
					|| (SELECT COALESCE(jsonb_agg('{}'::jsonb), '[]'::jsonb)
						FROM generate_series(jsonb_array_length(st_attribs), $2 - 1))
					|| jsonb_build_array($3::jsonb)
				END),
			updated_at = now()
			WHERE id = $1 AND jsonb_array_length(st_statuses) > $2`,
		id, index, string(body))
	if err != nil {
		return fmt.Errorf("save step attribs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.stepMiss(ctx, id, index)
	}
	return nil
}

// stepMiss distinguishes a missing instance from an out-of-range step index.
func (s *PostgresInstanceStore) stepMiss(ctx context.Context, id string, index int) error {
	var steps int
	err := s.db.QueryRow(ctx,
		`SELECT jsonb_array_length(st_statuses) FROM workflow_instances WHERE id = $1`, id).Scan(&steps)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("workflow instance %q does not exist", id)
	}
	if err != nil {
		return fmt.Errorf("check instance: %w", err)
	}
	return apperr.NotFound("workflow instance %q has no step at index %d", id, index)
}

func scanInstance(row pgx.Row) (*models.WorkflowInstance, error) {
	inst := &models.WorkflowInstance{}
	var statuses, attribs, runSpec, input, workflow []byte
	var assignmentID *string
	err := row.Scan(&inst.ID, &inst.WfID, &inst.WfVer, &inst.Wf, &inst.WfStatus,
		&statuses, &attribs, &runSpec, &input, &workflow,
		&assignmentID, &inst.TTL, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if assignmentID != nil {
		inst.AssignmentID = *assignmentID
	}
	if err := json.Unmarshal(statuses, &inst.StStatuses); err != nil {
		return nil, fmt.Errorf("unmarshal step statuses: %w", err)
	}
	if err := json.Unmarshal(attribs, &inst.StAttribs); err != nil {
		return nil, fmt.Errorf("unmarshal step attribs: %w", err)
	}
	if err := json.Unmarshal(runSpec, &inst.RunSpec); err != nil {
		return nil, fmt.Errorf("unmarshal run spec: %w", err)
	}
	if input != nil {
		if err := json.Unmarshal(input, &inst.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input: %w", err)
		}
	}
	if workflow != nil {
		if err := json.Unmarshal(workflow, &inst.Workflow); err != nil {
			return nil, fmt.Errorf("unmarshal workflow snapshot: %w", err)
		}
	}
	return inst, nil
}
