package models

import "time"

// SelectedStep is one ordered step reference inside a workflow template. It
// pins a step template version, may override presentation fields, declares
// config defaults, and controls what a consuming workflow may change.
type SelectedStep struct {
	ID              string `json:"id" validate:"required"`
	StepTemplateID  string `json:"stepTemplateId" validate:"required"`
	StepTemplateVer int    `json:"stepTemplateVer" validate:"required,min=1"`

	Title     string `json:"title,omitempty"`
	Desc      string `json:"desc,omitempty"`
	Skippable *bool  `json:"skippable,omitempty"`

	Defaults map[string]string `json:"defaults,omitempty"`

	PropsOverrideOption  OverrideOption `json:"propsOverrideOption"`
	ConfigOverrideOption OverrideOption `json:"configOverrideOption"`
}

// WorkflowTemplate is a versioned, reusable composition of step references
// plus rules for what a consuming workflow may override.
type WorkflowTemplate struct {
	ID  string `json:"id" validate:"required,recordid"`
	Ver int    `json:"v" validate:"required,min=1"`
	Rev int    `json:"rev"`

	Title   string `json:"title" validate:"required"`
	Desc    string `json:"desc,omitempty"`
	Hidden  bool   `json:"hidden"`
	Builtin bool   `json:"builtin"`

	// InstanceTTL is in days; NoInstanceTTL means instances never expire.
	InstanceTTL int     `json:"instanceTtl"`
	RunSpec     RunSpec `json:"runSpec" validate:"required"`

	PropsOverrideOption OverrideOption `json:"propsOverrideOption"`
	SelectedSteps       []SelectedStep `json:"selectedSteps" validate:"dive"`

	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// FindStep returns the selected step with the given id, or nil.
func (t *WorkflowTemplate) FindStep(id string) *SelectedStep {
	for i := range t.SelectedSteps {
		if t.SelectedSteps[i].ID == id {
			return &t.SelectedSteps[i]
		}
	}
	return nil
}
