package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/pkg/models"
)

func TestWorkflowPropViolations(t *testing.T) {
	tpl := testTemplate()

	t.Run("allowed overrides pass", func(t *testing.T) {
		wf := &models.Workflow{
			Title:       "Changed",
			Desc:        tpl.Desc,
			InstanceTTL: models.NoInstanceTTL,
			RunSpec:     tpl.RunSpec,
		}
		assert.Empty(t, WorkflowPropViolations(wf, tpl))
	})

	t.Run("disallowed overrides are reported", func(t *testing.T) {
		wf := &models.Workflow{
			Title:             tpl.Title,
			Desc:              "Changed Desc",
			InstanceTTL:       tpl.InstanceTTL,
			RunSpec:           models.RunSpec{Target: tpl.RunSpec.Target, Size: "large"},
			StepsOrderChanged: true,
		}
		assert.ElementsMatch(t,
			[]string{"desc", "runSpec.size", "steps"},
			WorkflowPropViolations(wf, tpl))
	})

	t.Run("run spec keys use dotted display names", func(t *testing.T) {
		wf := &models.Workflow{
			Title:       tpl.Title,
			Desc:        tpl.Desc,
			InstanceTTL: tpl.InstanceTTL,
			RunSpec:     models.RunSpec{Target: "other", Size: tpl.RunSpec.Size},
		}
		assert.Equal(t, []string{"runSpec.target"}, WorkflowPropViolations(wf, tpl))
	})

	t.Run("steps allowance permits order changes", func(t *testing.T) {
		allowing := testTemplate()
		allowing.PropsOverrideOption.Allowed = append(allowing.PropsOverrideOption.Allowed, KeySteps)
		wf := &models.Workflow{
			Title:             allowing.Title,
			Desc:              allowing.Desc,
			InstanceTTL:       allowing.InstanceTTL,
			RunSpec:           allowing.RunSpec,
			StepsOrderChanged: true,
		}
		assert.Empty(t, WorkflowPropViolations(wf, allowing))
	})
}

func TestStepPropViolations(t *testing.T) {
	st := testStepTemplate()
	tplStep := &testTemplate().SelectedSteps[0]

	t.Run("values equal to the resolved base pass", func(t *testing.T) {
		step := &models.WorkflowStep{
			ID:        "step-a",
			Title:     "Selected Title",
			Desc:      "The first step",
			Skippable: boolp(false),
		}
		assert.Empty(t, StepPropViolations(step, tplStep, st))
	})

	t.Run("allowed title change passes, others fail", func(t *testing.T) {
		step := &models.WorkflowStep{
			ID:        "step-a",
			Title:     "New Title",
			Desc:      "New Desc",
			Skippable: boolp(true),
		}
		assert.ElementsMatch(t, []string{"desc", "skippable"}, StepPropViolations(step, tplStep, st))
	})
}

func TestConfigViolations(t *testing.T) {
	defaults := map[string]string{"region": "us-east-1"}
	allowed := models.OverrideOption{Allowed: []string{"size"}}

	t.Run("default-equal values are exempt", func(t *testing.T) {
		configs := map[string]string{"region": "us-east-1", "size": "large"}
		assert.Empty(t, ConfigViolations(configs, defaults, allowed))
	})

	t.Run("changed non-allowed keys violate", func(t *testing.T) {
		configs := map[string]string{"region": "eu-west-1", "other": "x"}
		assert.Equal(t, []string{"other", "region"}, ConfigViolations(configs, defaults, allowed))
	})
}

func TestApplyOverrideConstraintsAccumulates(t *testing.T) {
	tpl := testTemplate()
	wf := &models.Workflow{
		ID:          "wf-1",
		Title:       tpl.Title,
		Desc:        "Changed Desc",
		InstanceTTL: tpl.InstanceTTL,
		RunSpec:     tpl.RunSpec,
		SelectedSteps: []models.WorkflowStep{{
			ID:        "step-a",
			Title:     "Selected Title",
			Desc:      "Changed Step Desc",
			Skippable: boolp(false),
			Configs:   map[string]string{"region": "eu-west-1"},
		}},
	}

	err := ApplyOverrideConstraints(wf, tpl, testLookup(t))
	require.Error(t, err)
	assert.Equal(t, apperr.KindConstraint, apperr.KindOf(err))
	// Every violation surfaces in one error, never just the first.
	assert.Contains(t, err.Error(), "desc")
	assert.Contains(t, err.Error(), "steps[step-a].desc")
	assert.Contains(t, err.Error(), "steps[step-a].region")
}

func TestApplyOverrideConstraintsSkipsUndeclaredSteps(t *testing.T) {
	tpl := testTemplate()
	tpl.PropsOverrideOption.Allowed = append(tpl.PropsOverrideOption.Allowed, KeySteps)
	wf := &models.Workflow{
		ID:                "wf-1",
		Title:             tpl.Title,
		Desc:              tpl.Desc,
		InstanceTTL:       tpl.InstanceTTL,
		RunSpec:           tpl.RunSpec,
		StepsOrderChanged: true,
		SelectedSteps: []models.WorkflowStep{{
			ID:              "extra",
			StepTemplateID:  "s1",
			StepTemplateVer: 1,
			Title:           "Anything Goes",
			Configs:         map[string]string{"region": "anywhere"},
		}},
	}

	assert.NoError(t, ApplyOverrideConstraints(wf, tpl, testLookup(t)))
}

func TestApplyOverrideConstraintsCleanWorkflow(t *testing.T) {
	tpl := testTemplate()
	wf := &models.Workflow{
		ID:          "wf-1",
		Title:       "Changed Title",
		Desc:        tpl.Desc,
		InstanceTTL: 30,
		RunSpec:     tpl.RunSpec,
		SelectedSteps: []models.WorkflowStep{{
			ID:        "step-a",
			Title:     "New Step Title",
			Desc:      "The first step",
			Skippable: boolp(false),
			Configs:   map[string]string{"region": "us-east-1", "size": "large"},
		}},
	}

	assert.NoError(t, ApplyOverrideConstraints(wf, tpl, testLookup(t)))
}
