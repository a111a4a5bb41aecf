package models

import "time"

// StepStatusEntry tracks the execution state of one step of an instance.
type StepStatusEntry struct {
	Status    StepStatus `json:"status"`
	Msg       string     `json:"msg,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// StepAttribs is the free-form per-step side-channel bag step handlers report
// into. Index-aligned with StStatuses.
type StepAttribs map[string]any

// WorkflowInstance is one execution record of a specific workflow version.
// WfStatus and individual StStatuses entries are mutated incrementally by the
// executing engine via targeted partial updates.
type WorkflowInstance struct {
	ID string `json:"id"`

	WfID  string `json:"wfId"`
	WfVer int    `json:"wfVer"`
	// Wf is WfID combined with the fixed-width encoded version, used as the
	// listing index key.
	Wf string `json:"wf"`

	WfStatus   WorkflowStatus    `json:"wfStatus"`
	StStatuses []StepStatusEntry `json:"stStatuses"`
	StAttribs  []StepAttribs     `json:"stAttribs"`

	RunSpec RunSpec        `json:"runSpec"`
	Input   map[string]any `json:"input,omitempty"`

	// Workflow is the stripped snapshot of the workflow version this instance
	// executes (descriptions and audit fields removed).
	Workflow *Workflow `json:"workflow,omitempty"`

	AssignmentID string     `json:"assignmentId,omitempty"`
	TTL          *time.Time `json:"ttl,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// TriggerRequest is the validated metadata a caller submits to start one
// execution of a workflow version.
type TriggerRequest struct {
	WorkflowID string `json:"workflowId" validate:"required,recordid"`
	// WorkflowVer zero means "latest published version".
	WorkflowVer  int            `json:"workflowVer" validate:"min=0"`
	Input        map[string]any `json:"input,omitempty"`
	AssignmentID string         `json:"assignmentId,omitempty"`
}
