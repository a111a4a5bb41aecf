package models

import "time"

// StepSource identifies the code backing a step: either a lambda ARN or a
// registered plugin id.
type StepSource struct {
	LambdaArn string `json:"lambdaArn,omitempty"`
	PluginID  string `json:"pluginId,omitempty"`
}

// InputEntry is one field (or nested group of fields) in an input manifest.
type InputEntry struct {
	Name     string       `json:"name,omitempty"`
	Type     string       `json:"type,omitempty"`
	Children []InputEntry `json:"children,omitempty"`
}

// InputSection groups related input entries for presentation.
type InputSection struct {
	Title    string       `json:"title,omitempty"`
	Children []InputEntry `json:"children,omitempty"`
}

// InputManifest describes the configuration inputs a step accepts.
type InputManifest struct {
	Sections []InputSection `json:"sections,omitempty"`
}

// InputEntryNonInteractive marks manifest entries that are computed, never
// entered by a user, and therefore never overridable.
const InputEntryNonInteractive = "nonInteractive"

// ConfigKeys walks the manifest recursively and returns the name of every
// interactive field. Used to derive config-override allowance for steps that
// are not declared in a workflow template.
func (m *InputManifest) ConfigKeys() []string {
	if m == nil {
		return nil
	}
	var keys []string
	for _, section := range m.Sections {
		keys = collectConfigKeys(section.Children, keys)
	}
	return keys
}

func collectConfigKeys(entries []InputEntry, keys []string) []string {
	for _, e := range entries {
		if e.Name != "" && e.Type != InputEntryNonInteractive {
			keys = append(keys, e.Name)
		}
		keys = collectConfigKeys(e.Children, keys)
	}
	return keys
}

// StepTemplate is the versioned definition of one atomic unit of work.
// A (id, v) pair is immutable once created; new content means a new version.
type StepTemplate struct {
	ID  string `json:"id" validate:"required,recordid"`
	Ver int    `json:"v" validate:"required,min=1"`
	Rev int    `json:"rev"`

	Title     string `json:"title" validate:"required"`
	Desc      string `json:"desc,omitempty"`
	Skippable bool   `json:"skippable"`
	Hidden    bool   `json:"hidden"`

	InputManifest      *InputManifest `json:"inputManifest,omitempty"`
	AdminInputManifest *InputManifest `json:"adminInputManifest,omitempty"`
	Src                StepSource     `json:"src"`

	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
