package models

import "time"

// WorkflowStep is one resolved step inside a concrete workflow. It mirrors
// SelectedStep and additionally carries the resolved config values and the
// source copied from its step template. The override options are echoes
// attached during resolution so editors can show what is changeable; they are
// stripped before a version is persisted.
type WorkflowStep struct {
	ID              string `json:"id" validate:"required"`
	StepTemplateID  string `json:"stepTemplateId" validate:"required"`
	StepTemplateVer int    `json:"stepTemplateVer" validate:"required,min=1"`

	Title     string `json:"title,omitempty"`
	Desc      string `json:"desc,omitempty"`
	Skippable *bool  `json:"skippable,omitempty"`

	Configs map[string]string `json:"configs,omitempty"`
	Src     StepSource        `json:"src,omitempty"`

	PropsOverrideOption  *OverrideOption `json:"propsOverrideOption,omitempty"`
	ConfigOverrideOption *OverrideOption `json:"configOverrideOption,omitempty"`
}

// Workflow is a versioned, concrete instantiation of one workflow-template
// version with resolved configuration values.
type Workflow struct {
	ID  string `json:"id" validate:"required,recordid"`
	Ver int    `json:"v" validate:"required,min=1"`
	Rev int    `json:"rev"`

	WorkflowTemplateID  string `json:"workflowTemplateId" validate:"required"`
	WorkflowTemplateVer int    `json:"workflowTemplateVer" validate:"required,min=1"`

	Title   string `json:"title" validate:"required"`
	Desc    string `json:"desc,omitempty"`
	Hidden  bool   `json:"hidden"`
	Builtin bool   `json:"builtin"`

	InstanceTTL int     `json:"instanceTtl"`
	RunSpec     RunSpec `json:"runSpec" validate:"required"`

	PropsOverrideOption OverrideOption `json:"propsOverrideOption"`
	StepsOrderChanged   bool           `json:"stepsOrderChanged"`
	SelectedSteps       []WorkflowStep `json:"selectedSteps" validate:"dive"`

	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// FindStep returns the workflow step with the given id, or nil.
func (w *Workflow) FindStep(id string) *WorkflowStep {
	for i := range w.SelectedSteps {
		if w.SelectedSteps[i].ID == id {
			return &w.SelectedSteps[i]
		}
	}
	return nil
}
