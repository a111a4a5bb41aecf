package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-registry/backend/pkg/models"
)

func boolp(b bool) *bool { return &b }

func testStepTemplate() *models.StepTemplate {
	return &models.StepTemplate{
		ID:        "s1",
		Ver:       1,
		Title:     "Step One",
		Desc:      "The first step",
		Skippable: false,
		Src:       models.StepSource{PluginID: "builtin/s1"},
		InputManifest: &models.InputManifest{
			Sections: []models.InputSection{{
				Title: "Main",
				Children: []models.InputEntry{
					{Name: "region", Type: "string"},
					{Name: "size", Type: "string"},
					{Name: "derived", Type: models.InputEntryNonInteractive},
				},
			}},
		},
	}
}

func testTemplate() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:          "wt-1",
		Ver:         2,
		Title:       "Template Title",
		Desc:        "Template Desc",
		InstanceTTL: 14,
		RunSpec:     models.RunSpec{Target: models.RunTargetStateMachine, Size: "small"},
		PropsOverrideOption: models.OverrideOption{
			Allowed: []string{KeyTitle, KeyInstanceTTL},
		},
		SelectedSteps: []models.SelectedStep{{
			ID:              "step-a",
			StepTemplateID:  "s1",
			StepTemplateVer: 1,
			Title:           "Selected Title",
			Defaults:        map[string]string{"region": "us-east-1"},
			PropsOverrideOption: models.OverrideOption{
				Allowed: []string{KeyTitle},
			},
			ConfigOverrideOption: models.OverrideOption{
				Allowed: []string{"size"},
			},
		}},
	}
}

func testLookup(t *testing.T) StepTemplateLookup {
	st := testStepTemplate()
	return func(id string, ver int) (*models.StepTemplate, error) {
		require.Equal(t, "s1", id)
		require.Equal(t, 1, ver)
		return st, nil
	}
}

func TestResolveWorkflowFallsBackToTemplate(t *testing.T) {
	tpl := testTemplate()
	wf := &models.Workflow{
		ID: "wf-1",
		SelectedSteps: []models.WorkflowStep{
			{ID: "step-a"},
		},
	}

	err := ResolveWorkflow(wf, tpl, testLookup(t))
	require.NoError(t, err)

	assert.Equal(t, "wt-1", wf.WorkflowTemplateID)
	assert.Equal(t, 2, wf.WorkflowTemplateVer)
	assert.Equal(t, "Template Title", wf.Title)
	assert.Equal(t, "Template Desc", wf.Desc)
	assert.Equal(t, 14, wf.InstanceTTL)
	assert.Equal(t, models.RunTargetStateMachine, wf.RunSpec.Target)
	assert.Equal(t, "small", wf.RunSpec.Size)
	assert.False(t, wf.StepsOrderChanged)

	step := wf.SelectedSteps[0]
	// Selected-step title beats step template title.
	assert.Equal(t, "Selected Title", step.Title)
	assert.Equal(t, "The first step", step.Desc)
	require.NotNil(t, step.Skippable)
	assert.False(t, *step.Skippable)
	assert.Equal(t, "builtin/s1", step.Src.PluginID)
	assert.Equal(t, map[string]string{"region": "us-east-1"}, step.Configs)
}

func TestResolveWorkflowKeepsExplicitValues(t *testing.T) {
	tpl := testTemplate()
	wf := &models.Workflow{
		ID:          "wf-1",
		Title:       "My Title",
		InstanceTTL: models.NoInstanceTTL,
		SelectedSteps: []models.WorkflowStep{
			{ID: "step-a", Configs: map[string]string{"size": "large"}},
		},
	}

	err := ResolveWorkflow(wf, tpl, testLookup(t))
	require.NoError(t, err)

	assert.Equal(t, "My Title", wf.Title)
	assert.Equal(t, models.NoInstanceTTL, wf.InstanceTTL)
	assert.Equal(t, map[string]string{
		"region": "us-east-1",
		"size":   "large",
	}, wf.SelectedSteps[0].Configs)
}

func TestResolveWorkflowStripsEmptyConfigValues(t *testing.T) {
	tpl := testTemplate()
	wf := &models.Workflow{
		ID: "wf-1",
		SelectedSteps: []models.WorkflowStep{
			{ID: "step-a", Configs: map[string]string{"region": "", "size": ""}},
		},
	}

	err := ResolveWorkflow(wf, tpl, testLookup(t))
	require.NoError(t, err)

	// Empty strings mean unset: the region default is removed, size never set.
	assert.Empty(t, wf.SelectedSteps[0].Configs)
}

func TestResolveWorkflowTemplatePinsStepVersion(t *testing.T) {
	tpl := testTemplate()
	wf := &models.Workflow{
		ID: "wf-1",
		SelectedSteps: []models.WorkflowStep{
			// The candidate claims a different version; the template entry wins.
			{ID: "step-a", StepTemplateID: "s1", StepTemplateVer: 99},
		},
	}

	err := ResolveWorkflow(wf, tpl, testLookup(t))
	require.NoError(t, err)
	assert.Equal(t, 1, wf.SelectedSteps[0].StepTemplateVer)
}

func TestResolveWorkflowUndeclaredStepNeedsTemplateRef(t *testing.T) {
	tpl := testTemplate()
	wf := &models.Workflow{
		ID: "wf-1",
		SelectedSteps: []models.WorkflowStep{
			{ID: "step-a"},
			{ID: "extra"},
		},
	}

	err := ResolveWorkflow(wf, tpl, testLookup(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `step "extra" does not reference a step template`)
}

func TestResolveWorkflowUndeclaredStepOverrideOptions(t *testing.T) {
	tpl := testTemplate()
	wf := &models.Workflow{
		ID: "wf-1",
		SelectedSteps: []models.WorkflowStep{
			{ID: "step-a"},
			{ID: "extra", StepTemplateID: "s1", StepTemplateVer: 1},
		},
	}

	err := ResolveWorkflow(wf, tpl, testLookup(t))
	require.NoError(t, err)

	extra := wf.SelectedSteps[1]
	require.NotNil(t, extra.PropsOverrideOption)
	assert.ElementsMatch(t, []string{KeyTitle, KeyDesc, KeySkippable}, extra.PropsOverrideOption.Allowed)
	require.NotNil(t, extra.ConfigOverrideOption)
	// Non-interactive manifest entries are never overridable.
	assert.ElementsMatch(t, []string{"region", "size"}, extra.ConfigOverrideOption.Allowed)
	assert.True(t, wf.StepsOrderChanged)
}

func TestStepsOrderChanged(t *testing.T) {
	tpl := testTemplate()
	tpl.SelectedSteps = append(tpl.SelectedSteps, models.SelectedStep{
		ID: "step-b", StepTemplateID: "s1", StepTemplateVer: 1,
	})

	cases := []struct {
		name    string
		steps   []models.WorkflowStep
		changed bool
	}{
		{
			name: "same order",
			steps: []models.WorkflowStep{
				{ID: "step-a"}, {ID: "step-b"},
			},
			changed: false,
		},
		{
			name: "swapped",
			steps: []models.WorkflowStep{
				{ID: "step-b"}, {ID: "step-a"},
			},
			changed: true,
		},
		{
			name: "removed",
			steps: []models.WorkflowStep{
				{ID: "step-a"},
			},
			changed: true,
		},
		{
			name: "retargeted version",
			steps: []models.WorkflowStep{
				{ID: "step-a", StepTemplateID: "s1", StepTemplateVer: 3}, {ID: "step-b"},
			},
			changed: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wf := &models.Workflow{SelectedSteps: tc.steps}
			assert.Equal(t, tc.changed, stepsOrderChanged(wf, tpl))
		})
	}
}

func TestResolveTemplateStep(t *testing.T) {
	st := testStepTemplate()
	tplStep := &models.SelectedStep{
		ID:              "step-a",
		StepTemplateID:  "s1",
		StepTemplateVer: 1,
		Defaults:        map[string]string{"region": "us-east-1", "size": ""},
	}

	ResolveTemplateStep(tplStep, st)

	assert.Equal(t, "Step One", tplStep.Title)
	assert.Equal(t, "The first step", tplStep.Desc)
	require.NotNil(t, tplStep.Skippable)
	assert.False(t, *tplStep.Skippable)
	// Empty default values are dropped.
	assert.Equal(t, map[string]string{"region": "us-east-1"}, tplStep.Defaults)
}

func TestStripResolvedEchoes(t *testing.T) {
	wf := &models.Workflow{
		SelectedSteps: []models.WorkflowStep{{
			ID:                   "step-a",
			PropsOverrideOption:  &models.OverrideOption{Allowed: []string{KeyTitle}},
			ConfigOverrideOption: &models.OverrideOption{Allowed: []string{"size"}},
		}},
	}

	StripResolvedEchoes(wf)

	assert.Nil(t, wf.SelectedSteps[0].PropsOverrideOption)
	assert.Nil(t, wf.SelectedSteps[0].ConfigOverrideOption)
}

func TestConfigKeysWalksNestedEntries(t *testing.T) {
	m := &models.InputManifest{
		Sections: []models.InputSection{{
			Children: []models.InputEntry{
				{Name: "top", Type: "string"},
				{Name: "group", Type: "group", Children: []models.InputEntry{
					{Name: "inner", Type: "string"},
					{Name: "hidden", Type: models.InputEntryNonInteractive},
				}},
			},
		}},
	}

	assert.ElementsMatch(t, []string{"top", "group", "inner"}, m.ConfigKeys())
}
