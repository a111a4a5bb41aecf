// Package resolve implements default resolution and override-constraint
// checking between step templates, workflow templates and workflows. All
// functions are pure; stores call them before persisting anything.
package resolve

import (
	"fmt"
	"sort"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/pkg/models"
)

// Workflow-level override keys. "steps" is special: it permits changing step
// order and composition rather than a scalar field.
const (
	KeyTitle         = "title"
	KeyDesc          = "desc"
	KeySkippable     = "skippable"
	KeyInstanceTTL   = "instanceTtl"
	KeyRunSpecTarget = "runSpecTarget"
	KeyRunSpecSize   = "runSpecSize"
	KeySteps         = "steps"
)

// propDisplayName maps allow-list keys to the property path reported in
// violation messages.
func propDisplayName(key string) string {
	switch key {
	case KeyRunSpecTarget:
		return "runSpec.target"
	case KeyRunSpecSize:
		return "runSpec.size"
	default:
		return key
	}
}

// WorkflowPropViolations compares the fixed set of workflow-level override
// keys between a workflow and its template, returning every key whose value
// differs without being in the template's allow-list.
func WorkflowPropViolations(wf *models.Workflow, tpl *models.WorkflowTemplate) []string {
	allowed := tpl.PropsOverrideOption
	var violations []string
	check := func(key string, differs bool) {
		if differs && !allowed.Allows(key) {
			violations = append(violations, propDisplayName(key))
		}
	}
	check(KeyTitle, wf.Title != tpl.Title)
	check(KeyDesc, wf.Desc != tpl.Desc)
	check(KeyInstanceTTL, wf.InstanceTTL != tpl.InstanceTTL)
	check(KeyRunSpecTarget, wf.RunSpec.Target != tpl.RunSpec.Target)
	check(KeyRunSpecSize, wf.RunSpec.Size != tpl.RunSpec.Size)
	check(KeySteps, wf.StepsOrderChanged)
	return violations
}

// StepPropViolations compares a workflow step's presentation properties
// against the effective template values (template step overrides layered over
// the step template). A value equal to what the template already resolves to
// is never a violation.
func StepPropViolations(step *models.WorkflowStep, tplStep *models.SelectedStep, st *models.StepTemplate) []string {
	baseTitle := firstNonEmpty(tplStep.Title, st.Title)
	baseDesc := firstNonEmpty(tplStep.Desc, st.Desc)
	baseSkippable := st.Skippable
	if tplStep.Skippable != nil {
		baseSkippable = *tplStep.Skippable
	}

	allowed := tplStep.PropsOverrideOption
	var violations []string
	check := func(key string, differs bool) {
		if differs && !allowed.Allows(key) {
			violations = append(violations, key)
		}
	}
	check(KeyTitle, step.Title != baseTitle)
	check(KeyDesc, step.Desc != baseDesc)
	check(KeySkippable, step.Skippable != nil && *step.Skippable != baseSkippable)
	return violations
}

// ConfigViolations returns every config key whose value differs from the
// declared defaults and is not in the allow-list. Keys carrying the default
// value are never violations even when absent from the allow-list.
func ConfigViolations(configs, defaults map[string]string, allowed models.OverrideOption) []string {
	var violations []string
	for key, val := range configs {
		if def, ok := defaults[key]; ok && def == val {
			continue
		}
		if !allowed.Allows(key) {
			violations = append(violations, key)
		}
	}
	sort.Strings(violations)
	return violations
}

// ApplyOverrideConstraints runs the workflow-level evaluator and, for every
// step declared in the template, the step-level props and config evaluators.
// Violations accumulate across the whole workflow into a single error so the
// client can fix everything in one pass.
func ApplyOverrideConstraints(wf *models.Workflow, tpl *models.WorkflowTemplate, lookup StepTemplateLookup) error {
	violations := WorkflowPropViolations(wf, tpl)

	for i := range wf.SelectedSteps {
		step := &wf.SelectedSteps[i]
		tplStep := tpl.FindStep(step.ID)
		if tplStep == nil {
			// Steps not declared in the template may override anything.
			continue
		}
		st, err := lookup(tplStep.StepTemplateID, tplStep.StepTemplateVer)
		if err != nil {
			return err
		}
		for _, key := range StepPropViolations(step, tplStep, st) {
			violations = append(violations, fmt.Sprintf("steps[%s].%s", step.ID, key))
		}
		for _, key := range ConfigViolations(step.Configs, tplStep.Defaults, tplStep.ConfigOverrideOption) {
			violations = append(violations, fmt.Sprintf("steps[%s].%s", step.ID, key))
		}
	}

	if len(violations) > 0 {
		return apperr.ConstraintViolation(violations)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
