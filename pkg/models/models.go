// Package models defines the domain models for the workflow registry service.
package models

import "fmt"

// RunTarget identifies which execution backend runs a workflow.
type RunTarget string

const (
	// RunTargetStateMachine dispatches to the external state-machine engine.
	// It is the only target the trigger currently implements.
	RunTargetStateMachine RunTarget = "stateMachine"
)

// RunSpec declares where and how a workflow is executed.
type RunSpec struct {
	Target RunTarget `json:"target" validate:"required"`
	Size   string    `json:"size,omitempty"`
}

// DefaultRunSpec is the run spec seeded into brand-new drafts.
func DefaultRunSpec() RunSpec {
	return RunSpec{Target: RunTargetStateMachine, Size: "small"}
}

// OverrideOption is an allow-list controlling which properties or config keys
// a lower layer may change relative to the layer above it.
type OverrideOption struct {
	Allowed []string `json:"allowed"`
}

// Allows reports whether the given key is in the allow-list.
func (o OverrideOption) Allows(key string) bool {
	for _, a := range o.Allowed {
		if a == key {
			return true
		}
	}
	return false
}

// WorkflowStatus is the overall status of a workflow instance.
type WorkflowStatus string

const (
	WorkflowStatusNotStarted WorkflowStatus = "not_started"
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusPaused     WorkflowStatus = "paused"
	WorkflowStatusDone       WorkflowStatus = "done"
	WorkflowStatusError      WorkflowStatus = "error"
)

// StepStatus is the status of a single step within a workflow instance.
type StepStatus string

const (
	StepStatusNotStarted StepStatus = "not_started"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusPaused     StepStatus = "paused"
	StepStatusSkipped    StepStatus = "skipped"
	StepStatusDone       StepStatus = "done"
	StepStatusError      StepStatus = "error"
)

// NoInstanceTTL is the instanceTtl sentinel meaning instances never expire.
const NoInstanceTTL = -1

// EncodeVersion renders a version number fixed-width so that lexicographic
// order matches numeric order in composite keys.
func EncodeVersion(v int) string {
	return fmt.Sprintf("%06d", v)
}

// InstanceWorkflowKey is the composite key an instance stores so that all
// instances of one workflow version list chronologically.
func InstanceWorkflowKey(id string, ver int) string {
	return id + "_" + EncodeVersion(ver)
}

// ExecutionName deterministically names the engine execution for an instance.
func ExecutionName(id string, ver int, instanceID string) string {
	return id + "_" + EncodeVersion(ver) + "_" + instanceID
}
