package resolve

import (
	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/pkg/models"
)

// StepTemplateLookup resolves one published step template version.
type StepTemplateLookup func(id string, ver int) (*models.StepTemplate, error)

// ResolveWorkflow merges a candidate workflow with the workflow template
// version it targets and the step templates those steps pin. The candidate is
// mutated in place: missing scalars fall back to the template, each step is
// resolved through the three-layer precedence chain, stepsOrderChanged is
// computed, and the effective override options are attached to every step.
// Constraint checking is a separate pass (ApplyOverrideConstraints).
func ResolveWorkflow(wf *models.Workflow, tpl *models.WorkflowTemplate, lookup StepTemplateLookup) error {
	wf.WorkflowTemplateID = tpl.ID
	wf.WorkflowTemplateVer = tpl.Ver

	// Workflow-level scalars: template defaults, candidate's explicit values
	// win. instanceTtl falls back explicitly so the no-expiry sentinel
	// survives the merge.
	wf.Title = firstNonEmpty(wf.Title, tpl.Title)
	wf.Desc = firstNonEmpty(wf.Desc, tpl.Desc)
	if wf.InstanceTTL == 0 {
		wf.InstanceTTL = tpl.InstanceTTL
	}
	if wf.RunSpec.Target == "" {
		wf.RunSpec.Target = tpl.RunSpec.Target
	}
	if wf.RunSpec.Size == "" {
		wf.RunSpec.Size = tpl.RunSpec.Size
	}
	// Not overridable; always derived from the template.
	wf.Hidden = tpl.Hidden
	wf.Builtin = tpl.Builtin
	wf.PropsOverrideOption = tpl.PropsOverrideOption

	wf.StepsOrderChanged = stepsOrderChanged(wf, tpl)

	for i := range wf.SelectedSteps {
		step := &wf.SelectedSteps[i]
		tplStep := tpl.FindStep(step.ID)
		if tplStep != nil {
			// The template entry is authoritative for the pinned version.
			step.StepTemplateID = tplStep.StepTemplateID
			step.StepTemplateVer = tplStep.StepTemplateVer
		}
		if step.StepTemplateID == "" || step.StepTemplateVer < 1 {
			return apperr.Validation("step %q does not reference a step template", step.ID)
		}
		st, err := lookup(step.StepTemplateID, step.StepTemplateVer)
		if err != nil {
			return err
		}
		resolveStep(step, tplStep, st)
	}
	return nil
}

// stepsOrderChanged reports whether the candidate's step composition differs
// from the template: a different count, or any positional mismatch of
// (stepTemplateId, stepTemplateVer, id).
func stepsOrderChanged(wf *models.Workflow, tpl *models.WorkflowTemplate) bool {
	if len(wf.SelectedSteps) != len(tpl.SelectedSteps) {
		return true
	}
	for i := range wf.SelectedSteps {
		ws, ts := &wf.SelectedSteps[i], &tpl.SelectedSteps[i]
		if ws.ID != ts.ID {
			return true
		}
		if ws.StepTemplateID != "" && ws.StepTemplateID != ts.StepTemplateID {
			return true
		}
		if ws.StepTemplateVer != 0 && ws.StepTemplateVer != ts.StepTemplateVer {
			return true
		}
	}
	return false
}

// resolveStep is the shared three-layer resolver: step template defaults,
// then the template's selected-step overrides, then the candidate's own
// values. tplStep is nil for steps the template does not declare.
func resolveStep(step *models.WorkflowStep, tplStep *models.SelectedStep, st *models.StepTemplate) {
	var tplTitle, tplDesc string
	var tplSkippable *bool
	var defaults map[string]string
	if tplStep != nil {
		tplTitle, tplDesc = tplStep.Title, tplStep.Desc
		tplSkippable = tplStep.Skippable
		defaults = tplStep.Defaults
	}

	step.Title = firstNonEmpty(step.Title, tplTitle, st.Title)
	step.Desc = firstNonEmpty(step.Desc, tplDesc, st.Desc)
	if step.Skippable == nil {
		if tplSkippable != nil {
			step.Skippable = boolPtr(*tplSkippable)
		} else {
			step.Skippable = boolPtr(st.Skippable)
		}
	}
	step.Src = st.Src

	// Config precedence: template defaults under the candidate's own values.
	// Empty strings are unset, never persisted.
	merged := make(map[string]string, len(defaults)+len(step.Configs))
	for k, v := range defaults {
		if v != "" {
			merged[k] = v
		}
	}
	for k, v := range step.Configs {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	step.Configs = merged

	if tplStep != nil {
		step.PropsOverrideOption = &models.OverrideOption{Allowed: tplStep.PropsOverrideOption.Allowed}
		step.ConfigOverrideOption = &models.OverrideOption{Allowed: tplStep.ConfigOverrideOption.Allowed}
		return
	}
	// Undeclared steps may override everything; config allowance is every
	// interactive field of the step template's input manifest.
	step.PropsOverrideOption = &models.OverrideOption{
		Allowed: []string{KeyTitle, KeyDesc, KeySkippable},
	}
	step.ConfigOverrideOption = &models.OverrideOption{
		Allowed: st.InputManifest.ConfigKeys(),
	}
}

// ResolveTemplateStep layers a workflow template's selected-step overrides
// over its step template, used when a template version is created to fill
// display fields.
func ResolveTemplateStep(tplStep *models.SelectedStep, st *models.StepTemplate) {
	tplStep.Title = firstNonEmpty(tplStep.Title, st.Title)
	tplStep.Desc = firstNonEmpty(tplStep.Desc, st.Desc)
	if tplStep.Skippable == nil {
		tplStep.Skippable = boolPtr(st.Skippable)
	}
	for k, v := range tplStep.Defaults {
		if v == "" {
			delete(tplStep.Defaults, k)
		}
	}
}

// StripResolvedEchoes removes the derived per-step override-option echoes
// before a workflow version is persisted.
func StripResolvedEchoes(wf *models.Workflow) {
	for i := range wf.SelectedSteps {
		wf.SelectedSteps[i].PropsOverrideOption = nil
		wf.SelectedSteps[i].ConfigOverrideOption = nil
	}
}

func boolPtr(b bool) *bool { return &b }
