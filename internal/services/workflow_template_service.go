package services

import (
	"context"
	"encoding/json"
	"fmt"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/internal/logging"
	"workflow-registry/backend/internal/repository"
	"workflow-registry/backend/internal/resolve"
	"workflow-registry/backend/pkg/models"
)

// WorkflowTemplateService manages versioned workflow templates.
type WorkflowTemplateService struct {
	store  repository.VersionStore
	steps  *StepTemplateService
	audit  *Auditor
	logger *logging.Logger
}

// NewWorkflowTemplateService creates a new WorkflowTemplateService.
func NewWorkflowTemplateService(store repository.VersionStore, steps *StepTemplateService, audit *Auditor, logger *logging.Logger) *WorkflowTemplateService {
	return &WorkflowTemplateService{store: store, steps: steps, audit: audit, logger: logger}
}

// Create publishes a new workflow template version on behalf of an
// administrator.
func (s *WorkflowTemplateService) Create(ctx context.Context, tpl *models.WorkflowTemplate) (*models.WorkflowTemplate, error) {
	p, err := ensureAdmin(ctx)
	if err != nil {
		return nil, err
	}
	tpl.CreatedBy = p.UID
	out, err := s.CreateVersion(ctx, tpl)
	if err != nil {
		return nil, err
	}
	s.audit.Write(ctx, p.UID, "create-workflow-template", out)
	return out, nil
}

// CreateVersion validates and persists a template version. Authorization is
// the caller's concern: the admin path and the draft publish path both end
// here.
func (s *WorkflowTemplateService) CreateVersion(ctx context.Context, tpl *models.WorkflowTemplate) (*models.WorkflowTemplate, error) {
	if err := validateManifest(tpl); err != nil {
		return nil, err
	}
	if err := s.ResolveSteps(ctx, tpl); err != nil {
		return nil, err
	}

	rec, err := workflowTemplateRecord(tpl)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateVersion(ctx, rec); err != nil {
		return nil, err
	}
	return decodeWorkflowTemplate(rec)
}

// Update rewrites an existing version in place under a rev check.
func (s *WorkflowTemplateService) Update(ctx context.Context, tpl *models.WorkflowTemplate) (*models.WorkflowTemplate, error) {
	p, err := ensureAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateManifest(tpl); err != nil {
		return nil, err
	}
	if err := s.ResolveSteps(ctx, tpl); err != nil {
		return nil, err
	}

	rec, err := workflowTemplateRecord(tpl)
	if err != nil {
		return nil, err
	}
	rec.Rev = tpl.Rev
	if err := s.store.UpdateVersion(ctx, rec); err != nil {
		return nil, err
	}

	s.audit.Write(ctx, p.UID, "update-workflow-template", tpl)
	return decodeWorkflowTemplate(rec)
}

// ResolveSteps verifies every selected step references a published step
// template version and fills the display fields the template leaves blank.
func (s *WorkflowTemplateService) ResolveSteps(ctx context.Context, tpl *models.WorkflowTemplate) error {
	seen := make(map[string]bool, len(tpl.SelectedSteps))
	for i := range tpl.SelectedSteps {
		step := &tpl.SelectedSteps[i]
		if seen[step.ID] {
			return apperr.Validation("step id %q appears more than once", step.ID)
		}
		seen[step.ID] = true

		st, err := s.steps.Find(ctx, step.StepTemplateID, step.StepTemplateVer)
		if err != nil {
			return err
		}
		resolve.ResolveTemplateStep(step, st)
	}
	return nil
}

// Find retrieves one published workflow template version.
func (s *WorkflowTemplateService) Find(ctx context.Context, id string, ver int) (*models.WorkflowTemplate, error) {
	rec, err := s.store.FindVersion(ctx, id, ver)
	if err != nil {
		return nil, err
	}
	return decodeWorkflowTemplate(rec)
}

// FindLatest retrieves the latest published version of id.
func (s *WorkflowTemplateService) FindLatest(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	latest, err := s.store.LatestVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, apperr.NotFound("workflow template %q has no published versions", id)
	}
	return s.Find(ctx, id, latest)
}

// LatestVersion returns the latest published version number, or 0.
func (s *WorkflowTemplateService) LatestVersion(ctx context.Context, id string) (int, error) {
	return s.store.LatestVersion(ctx, id)
}

// ListVersions returns every version of one workflow template, newest first.
func (s *WorkflowTemplateService) ListVersions(ctx context.Context, id string) ([]*models.WorkflowTemplate, error) {
	recs, err := s.store.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeWorkflowTemplates(recs)
}

// List returns the latest version of every workflow template.
func (s *WorkflowTemplateService) List(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return decodeWorkflowTemplates(recs)
}

func workflowTemplateRecord(tpl *models.WorkflowTemplate) (*repository.VersionRecord, error) {
	body := *tpl
	body.Rev = 0
	raw, err := json.Marshal(&body)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow template: %w", err)
	}
	return &repository.VersionRecord{
		ID:        tpl.ID,
		Ver:       tpl.Ver,
		Body:      raw,
		CreatedBy: tpl.CreatedBy,
	}, nil
}

func decodeWorkflowTemplate(rec *repository.VersionRecord) (*models.WorkflowTemplate, error) {
	tpl := &models.WorkflowTemplate{}
	if err := json.Unmarshal(rec.Body, tpl); err != nil {
		return nil, fmt.Errorf("unmarshal workflow template %q v%d: %w", rec.ID, rec.Ver, err)
	}
	tpl.ID, tpl.Ver, tpl.Rev = rec.ID, rec.Ver, rec.Rev
	tpl.CreatedBy = rec.CreatedBy
	tpl.CreatedAt, tpl.UpdatedAt = rec.CreatedAt, rec.UpdatedAt
	return tpl, nil
}

func decodeWorkflowTemplates(recs []*repository.VersionRecord) ([]*models.WorkflowTemplate, error) {
	out := make([]*models.WorkflowTemplate, 0, len(recs))
	for _, rec := range recs {
		tpl, err := decodeWorkflowTemplate(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}
