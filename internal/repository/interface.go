package repository

import (
	"context"
	"time"

	"workflow-registry/backend/pkg/models"
)

// VersionRecord is one stored version of a versioned entity. Body carries the
// marshaled manifest; the service layer owns (un)marshaling so the store stays
// generic across step templates, workflow templates and workflows.
type VersionRecord struct {
	ID        string
	Ver       int
	Rev       int
	Body      []byte
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VersionStore is the shared append-only multi-version record protocol.
// Numbered records are immutable after creation except through UpdateVersion's
// rev-checked fix-up path; the latest pointer only ever advances.
type VersionStore interface {
	// CreateVersion writes a numbered version with a "must not already exist"
	// condition, then best-effort advances the latest pointer. A lost pointer
	// race is swallowed: the numbered version was still durably written.
	CreateVersion(ctx context.Context, rec *VersionRecord) error
	// UpdateVersion rewrites an existing version; rec.Rev must match the
	// stored revision or a conflict is returned.
	UpdateVersion(ctx context.Context, rec *VersionRecord) error
	FindVersion(ctx context.Context, id string, ver int) (*VersionRecord, error)
	// LatestVersion returns the pointer value for id, or 0 when none exists.
	LatestVersion(ctx context.Context, id string) (int, error)
	// ListVersions returns every numbered version of id, newest first.
	ListVersions(ctx context.Context, id string) ([]*VersionRecord, error)
	// List returns the latest version of every id.
	List(ctx context.Context) ([]*VersionRecord, error)
}

// DraftRecord is the stored form of a template or workflow draft.
type DraftRecord struct {
	ID        string
	Kind      models.DraftKind
	UID       string
	TargetID  string
	TargetVer int
	Rev       int
	Body      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DraftStore persists single-owner mutable drafts. At most one draft may
// exist per (kind, targetId, targetVersion).
type DraftStore interface {
	Create(ctx context.Context, rec *DraftRecord) error
	// Update is rev-checked; the target identity columns are never rewritten.
	Update(ctx context.Context, rec *DraftRecord) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, id string) (*DraftRecord, error)
	ListByOwner(ctx context.Context, kind models.DraftKind, uid string) ([]*DraftRecord, error)
}

// StepStatusPatch is a field-scoped update to one step status entry. Nil
// pointer fields are left untouched; the Clear flags remove the field.
type StepStatusPatch struct {
	Status         models.StepStatus
	Msg            *string
	StartTime      *time.Time
	ClearStartTime bool
	EndTime        *time.Time
	ClearEndTime   bool
}

// InstanceStore persists workflow instances. Status and attribute writes are
// targeted partial updates so concurrent step handlers reporting different
// indices never clobber each other.
type InstanceStore interface {
	Create(ctx context.Context, inst *models.WorkflowInstance) error
	Find(ctx context.Context, id string) (*models.WorkflowInstance, error)
	// ListByWorkflow lists instances of one workflow version chronologically;
	// key is models.InstanceWorkflowKey(id, ver).
	ListByWorkflow(ctx context.Context, key string) ([]*models.WorkflowInstance, error)
	UpdateWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error
	UpdateStepStatus(ctx context.Context, id string, index int, patch StepStatusPatch) error
	// SaveStepAttribs sets the attribute bag at index, padding the array with
	// empty objects so it stays index-aligned with the status array.
	SaveStepAttribs(ctx context.Context, id string, index int, attribs models.StepAttribs) error
}

// AuditStore persists audit records. Callers treat writes as fire-and-forget.
type AuditStore interface {
	Write(ctx context.Context, uid, action string, body []byte) error
}
