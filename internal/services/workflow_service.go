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

// WorkflowService manages versioned workflows. Every version is derived from
// exactly one workflow template version; creation resolves defaults against
// that template and rejects disallowed overrides.
type WorkflowService struct {
	store     repository.VersionStore
	templates *WorkflowTemplateService
	steps     *StepTemplateService
	audit     *Auditor
	logger    *logging.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(store repository.VersionStore, templates *WorkflowTemplateService, steps *StepTemplateService, audit *Auditor, logger *logging.Logger) *WorkflowService {
	return &WorkflowService{store: store, templates: templates, steps: steps, audit: audit, logger: logger}
}

// stepTemplateLookup adapts the step template service for the resolver.
func (s *WorkflowService) stepTemplateLookup(ctx context.Context) resolve.StepTemplateLookup {
	return func(id string, ver int) (*models.StepTemplate, error) {
		return s.steps.Find(ctx, id, ver)
	}
}

// Resolve merges the candidate with its targeted template version and checks
// override constraints. The candidate is mutated into its effective form.
func (s *WorkflowService) Resolve(ctx context.Context, wf *models.Workflow) error {
	if wf.WorkflowTemplateID == "" {
		return apperr.Validation("workflow does not reference a workflow template")
	}
	var tpl *models.WorkflowTemplate
	var err error
	if wf.WorkflowTemplateVer > 0 {
		tpl, err = s.templates.Find(ctx, wf.WorkflowTemplateID, wf.WorkflowTemplateVer)
	} else {
		tpl, err = s.templates.FindLatest(ctx, wf.WorkflowTemplateID)
	}
	if err != nil {
		return err
	}

	lookup := s.stepTemplateLookup(ctx)
	if err := resolve.ResolveWorkflow(wf, tpl, lookup); err != nil {
		return err
	}
	return resolve.ApplyOverrideConstraints(wf, tpl, lookup)
}

// Create publishes a new workflow version on behalf of an administrator.
func (s *WorkflowService) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	p, err := ensureAdmin(ctx)
	if err != nil {
		return nil, err
	}
	wf.CreatedBy = p.UID
	out, err := s.CreateVersion(ctx, wf)
	if err != nil {
		return nil, err
	}
	s.audit.Write(ctx, p.UID, "create-workflow", out)
	return out, nil
}

// CreateVersion resolves, constraint-checks and persists a workflow version.
// Authorization is the caller's concern: the admin path and the draft publish
// path both end here.
func (s *WorkflowService) CreateVersion(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	// Resolution runs before validation: a candidate may omit any value the
	// template provides.
	if err := s.Resolve(ctx, wf); err != nil {
		return nil, err
	}
	if err := validateManifest(wf); err != nil {
		return nil, err
	}
	resolve.StripResolvedEchoes(wf)

	rec, err := workflowRecord(wf)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateVersion(ctx, rec); err != nil {
		return nil, err
	}
	return decodeWorkflow(rec)
}

// Update rewrites an existing version in place under a rev check, re-running
// resolution and constraint enforcement first.
func (s *WorkflowService) Update(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	p, err := ensureAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Resolve(ctx, wf); err != nil {
		return nil, err
	}
	if err := validateManifest(wf); err != nil {
		return nil, err
	}
	resolve.StripResolvedEchoes(wf)

	rec, err := workflowRecord(wf)
	if err != nil {
		return nil, err
	}
	rec.Rev = wf.Rev
	if err := s.store.UpdateVersion(ctx, rec); err != nil {
		return nil, err
	}

	s.audit.Write(ctx, p.UID, "update-workflow", wf)
	return decodeWorkflow(rec)
}

// Find retrieves one published workflow version.
func (s *WorkflowService) Find(ctx context.Context, id string, ver int) (*models.Workflow, error) {
	rec, err := s.store.FindVersion(ctx, id, ver)
	if err != nil {
		return nil, err
	}
	return decodeWorkflow(rec)
}

// FindLatest retrieves the latest published version of id.
func (s *WorkflowService) FindLatest(ctx context.Context, id string) (*models.Workflow, error) {
	latest, err := s.store.LatestVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, apperr.NotFound("workflow %q has no published versions", id)
	}
	return s.Find(ctx, id, latest)
}

// LatestVersion returns the latest published version number, or 0.
func (s *WorkflowService) LatestVersion(ctx context.Context, id string) (int, error) {
	return s.store.LatestVersion(ctx, id)
}

// ListVersions returns every version of one workflow, newest first.
func (s *WorkflowService) ListVersions(ctx context.Context, id string) ([]*models.Workflow, error) {
	recs, err := s.store.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeWorkflows(recs)
}

// List returns the latest version of every workflow.
func (s *WorkflowService) List(ctx context.Context) ([]*models.Workflow, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return decodeWorkflows(recs)
}

func workflowRecord(wf *models.Workflow) (*repository.VersionRecord, error) {
	body := *wf
	body.Rev = 0
	raw, err := json.Marshal(&body)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow: %w", err)
	}
	return &repository.VersionRecord{
		ID:        wf.ID,
		Ver:       wf.Ver,
		Body:      raw,
		CreatedBy: wf.CreatedBy,
	}, nil
}

func decodeWorkflow(rec *repository.VersionRecord) (*models.Workflow, error) {
	wf := &models.Workflow{}
	if err := json.Unmarshal(rec.Body, wf); err != nil {
		return nil, fmt.Errorf("unmarshal workflow %q v%d: %w", rec.ID, rec.Ver, err)
	}
	wf.ID, wf.Ver, wf.Rev = rec.ID, rec.Ver, rec.Rev
	wf.CreatedBy = rec.CreatedBy
	wf.CreatedAt, wf.UpdatedAt = rec.CreatedAt, rec.UpdatedAt
	return wf, nil
}

func decodeWorkflows(recs []*repository.VersionRecord) ([]*models.Workflow, error) {
	out := make([]*models.Workflow, 0, len(recs))
	for _, rec := range recs {
		wf, err := decodeWorkflow(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, nil
}
