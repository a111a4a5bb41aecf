package models

import (
	"fmt"
	"time"
)

// DraftKind distinguishes the two draft record families sharing one store.
type DraftKind string

const (
	DraftKindTemplate DraftKind = "workflow-template"
	DraftKindWorkflow DraftKind = "workflow"
)

// DraftID derives the draft primary key from its owner and target. Uniqueness
// per target is enforced separately by the store, so two owners can never hold
// drafts against the same (targetId, targetVersion).
func DraftID(uid, targetID string, targetVer int) string {
	return fmt.Sprintf("%s_%s_%d", uid, targetID, targetVer)
}

// TemplateDraft is a mutable, single-owner staging copy of a workflow template
// prior to publishing an immutable version. The owner never changes after
// creation; rev is the optimistic-lock revision counter.
type TemplateDraft struct {
	ID  string `json:"id"`
	Rev int    `json:"rev"`
	UID string `json:"uid"`

	TemplateID  string            `json:"templateId" validate:"required,recordid"`
	TemplateVer int               `json:"templateVer"`
	Template    *WorkflowTemplate `json:"template" validate:"required"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// WorkflowDraft is a mutable, single-owner staging copy of a workflow prior to
// publishing an immutable version.
type WorkflowDraft struct {
	ID  string `json:"id"`
	Rev int    `json:"rev"`
	UID string `json:"uid"`

	WorkflowID  string    `json:"workflowId" validate:"required,recordid"`
	WorkflowVer int       `json:"workflowVer"`
	Workflow    *Workflow `json:"workflow" validate:"required"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
