package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/pkg/models"
)

func TestStepTemplateVersioning(t *testing.T) {
	e := newEnv()
	ctx := adminCtx()
	st := e.seedStepTemplate(ctx, "st1")
	assert.Equal(t, "admin@test", st.CreatedBy)

	// The same (id, v) pair can never be written twice.
	_, err := e.steps.Create(ctx, &models.StepTemplate{
		ID:    "st1",
		Ver:   1,
		Title: "Duplicate",
		Src:   models.StepSource{PluginID: "p"},
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// A higher version advances the latest pointer.
	_, err = e.steps.Create(ctx, &models.StepTemplate{
		ID:    "st1",
		Ver:   2,
		Title: "Step st1 v2",
		Src:   models.StepSource{PluginID: "p"},
	})
	require.NoError(t, err)

	latest, err := e.steps.FindLatest(ctx, "st1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Ver)

	versions, err := e.steps.ListVersions(ctx, "st1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Ver)
}

func TestStepTemplateRejectsShortID(t *testing.T) {
	e := newEnv()

	// Record ids need at least three characters.
	_, err := e.steps.Create(adminCtx(), &models.StepTemplate{
		ID:    "s1",
		Ver:   1,
		Title: "Too Short",
		Src:   models.StepSource{PluginID: "p"},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestStepTemplateUpdateStaleRev(t *testing.T) {
	e := newEnv()
	ctx := adminCtx()
	st := e.seedStepTemplate(ctx, "st1")

	st.Title = "Fixed Title"
	updated, err := e.steps.Update(ctx, st)
	require.NoError(t, err)
	assert.Greater(t, updated.Rev, st.Rev)

	// Replaying the original rev conflicts.
	st.Title = "Replay"
	_, err = e.steps.Update(ctx, st)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestWorkflowTemplateRejectsUnknownStepRef(t *testing.T) {
	e := newEnv()
	ctx := adminCtx()

	_, err := e.templates.Create(ctx, &models.WorkflowTemplate{
		ID:      "tpl-bad",
		Ver:     1,
		Title:   "Bad",
		RunSpec: models.DefaultRunSpec(),
		SelectedSteps: []models.SelectedStep{{
			ID:              "step-a",
			StepTemplateID:  "ghost",
			StepTemplateVer: 1,
		}},
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestWorkflowTemplateRejectsDuplicateStepIDs(t *testing.T) {
	e := newEnv()
	ctx := adminCtx()
	e.seedStepTemplate(ctx, "st1")

	_, err := e.templates.Create(ctx, &models.WorkflowTemplate{
		ID:      "tpl-dup",
		Ver:     1,
		Title:   "Dup",
		RunSpec: models.DefaultRunSpec(),
		SelectedSteps: []models.SelectedStep{
			{ID: "step-a", StepTemplateID: "st1", StepTemplateVer: 1},
			{ID: "step-a", StepTemplateID: "st1", StepTemplateVer: 1},
		},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestWorkflowTemplateFillsStepDisplayFields(t *testing.T) {
	e := newEnv()
	ctx := adminCtx()
	tpl := e.seedWorkflowTemplate(ctx, "tpl-1")

	step := tpl.SelectedSteps[0]
	assert.Equal(t, "Step st1", step.Title)
	require.NotNil(t, step.Skippable)
	assert.False(t, *step.Skippable)
}

func TestWorkflowCreateRequiresAdmin(t *testing.T) {
	e := newEnv()
	e.seedWorkflowTemplate(adminCtx(), "tpl-1")

	_, err := e.workflows.Create(userCtx("viewer@test"), &models.Workflow{
		ID:                 "wf-1",
		Ver:                1,
		WorkflowTemplateID: "tpl-1",
	})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestWorkflowCreateEnforcesConstraints(t *testing.T) {
	e := newEnv()
	ctx := adminCtx()
	e.seedWorkflowTemplate(ctx, "tpl-1")

	_, err := e.workflows.Create(ctx, &models.Workflow{
		ID:                 "wf-1",
		Ver:                1,
		WorkflowTemplateID: "tpl-1",
		RunSpec:            models.RunSpec{Size: "xlarge"},
		SelectedSteps: []models.WorkflowStep{
			{ID: "step-a"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConstraint, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "runSpec.size")
}

func TestWorkflowCreatePersistsResolvedForm(t *testing.T) {
	e := newEnv()
	ctx := adminCtx()
	wf := e.seedWorkflow(ctx, "wf-1", "tpl-1")

	assert.Equal(t, "Template tpl-1", wf.Title)
	assert.Equal(t, 7, wf.InstanceTTL)
	require.Len(t, wf.SelectedSteps, 1)
	step := wf.SelectedSteps[0]
	assert.Equal(t, "st1", step.StepTemplateID)
	assert.Equal(t, map[string]string{"region": "us-east-1"}, step.Configs)
	assert.Equal(t, "builtin/st1", step.Src.PluginID)
	assert.Nil(t, step.PropsOverrideOption)
	assert.Nil(t, step.ConfigOverrideOption)
}
