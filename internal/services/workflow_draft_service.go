package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/internal/auth"
	"workflow-registry/backend/internal/logging"
	"workflow-registry/backend/internal/repository"
	"workflow-registry/backend/pkg/models"
)

// CreateWorkflowDraftRequest starts editing a workflow. A brand-new workflow
// names the template to derive it from; WorkflowTemplateVer of zero picks the
// latest published template version.
type CreateWorkflowDraftRequest struct {
	WorkflowID          string `json:"workflowId" validate:"required,recordid"`
	IsNew               bool   `json:"isNew"`
	WorkflowTemplateID  string `json:"workflowTemplateId" validate:"omitempty,recordid"`
	WorkflowTemplateVer int    `json:"workflowTemplateVer" validate:"gte=0"`
}

// WorkflowDraftService manages the mutable staging records workflows are
// edited through before publishing.
type WorkflowDraftService struct {
	drafts    repository.DraftStore
	workflows *WorkflowService
	templates *WorkflowTemplateService
	audit     *Auditor
	logger    *logging.Logger
}

// NewWorkflowDraftService creates a new WorkflowDraftService.
func NewWorkflowDraftService(drafts repository.DraftStore, workflows *WorkflowService, templates *WorkflowTemplateService, audit *Auditor, logger *logging.Logger) *WorkflowDraftService {
	return &WorkflowDraftService{drafts: drafts, workflows: workflows, templates: templates, audit: audit, logger: logger}
}

// Create opens a draft. An existing workflow's latest version is copied
// verbatim; a brand-new one is seeded from its workflow template, with every
// selected step carried over and configs prefilled from the template defaults.
func (s *WorkflowDraftService) Create(ctx context.Context, req *CreateWorkflowDraftRequest) (*models.WorkflowDraft, error) {
	p, err := ensureAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateManifest(req); err != nil {
		return nil, err
	}

	latest, err := s.workflows.LatestVersion(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	var wf *models.Workflow
	switch {
	case req.IsNew && latest > 0:
		return nil, apperr.Conflict("workflow %q already exists; draft it without isNew", req.WorkflowID)
	case req.IsNew:
		wf, err = s.seedFromTemplate(ctx, req)
		if err != nil {
			return nil, err
		}
	case latest == 0:
		return nil, apperr.NotFound("workflow %q has no published versions", req.WorkflowID)
	default:
		wf, err = s.workflows.Find(ctx, req.WorkflowID, latest)
		if err != nil {
			return nil, err
		}
	}

	draft := &models.WorkflowDraft{
		ID:          models.DraftID(p.UID, req.WorkflowID, latest),
		UID:         p.UID,
		WorkflowID:  req.WorkflowID,
		WorkflowVer: latest,
		Workflow:    wf,
	}
	rec, err := workflowDraftRecord(draft)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.audit.Write(ctx, p.UID, "create-workflow-draft", draft)
	return decodeWorkflowDraft(rec)
}

// seedFromTemplate derives an initial workflow from a workflow template
// version: scalars mirror the template and every selected step becomes a
// workflow step with its configs prefilled from the template defaults.
func (s *WorkflowDraftService) seedFromTemplate(ctx context.Context, req *CreateWorkflowDraftRequest) (*models.Workflow, error) {
	if req.WorkflowTemplateID == "" {
		return nil, apperr.Validation("a new workflow draft must name its workflow template")
	}
	var tpl *models.WorkflowTemplate
	var err error
	if req.WorkflowTemplateVer > 0 {
		tpl, err = s.templates.Find(ctx, req.WorkflowTemplateID, req.WorkflowTemplateVer)
	} else {
		tpl, err = s.templates.FindLatest(ctx, req.WorkflowTemplateID)
	}
	if err != nil {
		return nil, err
	}

	wf := &models.Workflow{
		ID:                  req.WorkflowID,
		Ver:                 1,
		WorkflowTemplateID:  tpl.ID,
		WorkflowTemplateVer: tpl.Ver,
		Title:               tpl.Title,
		Desc:                tpl.Desc,
		InstanceTTL:         tpl.InstanceTTL,
		RunSpec:             tpl.RunSpec,
		SelectedSteps:       make([]models.WorkflowStep, 0, len(tpl.SelectedSteps)),
	}
	for _, st := range tpl.SelectedSteps {
		step := models.WorkflowStep{
			ID:              st.ID,
			StepTemplateID:  st.StepTemplateID,
			StepTemplateVer: st.StepTemplateVer,
		}
		if len(st.Defaults) > 0 {
			step.Configs = make(map[string]string, len(st.Defaults))
			for k, v := range st.Defaults {
				step.Configs[k] = v
			}
		}
		wf.SelectedSteps = append(wf.SelectedSteps, step)
	}
	return wf, nil
}

// Update persists draft edits under the optimistic rev check. The draft is
// re-resolved against the current latest version of its workflow template, so
// template changes published mid-edit surface as constraint violations here
// rather than at publish time.
func (s *WorkflowDraftService) Update(ctx context.Context, draft *models.WorkflowDraft) (*models.WorkflowDraft, error) {
	p, stored, err := s.ownedDraft(ctx, draft.ID)
	if err != nil {
		return nil, err
	}
	if draft.WorkflowID != stored.TargetID || draft.WorkflowVer != stored.TargetVer {
		return nil, apperr.Validation("the draft's target workflow cannot change mid-edit")
	}
	if draft.Workflow == nil {
		return nil, apperr.Validation("the draft carries no workflow")
	}

	draft.UID = stored.UID
	draft.Workflow.ID = stored.TargetID
	if draft.Workflow.Ver < 1 {
		draft.Workflow.Ver = 1
	}
	draft.Workflow.WorkflowTemplateVer = 0
	if err := s.workflows.Resolve(ctx, draft.Workflow); err != nil {
		return nil, err
	}
	if err := validateManifest(draft); err != nil {
		return nil, err
	}

	rec, err := workflowDraftRecord(draft)
	if err != nil {
		return nil, err
	}
	rec.Rev = draft.Rev
	if err := s.drafts.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.audit.Write(ctx, p.UID, "update-workflow-draft", draft)
	return decodeWorkflowDraft(rec)
}

// Publish runs one final update, promotes the draft content into the next
// immutable workflow version, and deletes the draft. A racing publish of the
// same target surfaces as a retryable conflict.
func (s *WorkflowDraftService) Publish(ctx context.Context, draft *models.WorkflowDraft) (*models.Workflow, error) {
	updated, err := s.Update(ctx, draft)
	if err != nil {
		return nil, err
	}

	wf := updated.Workflow
	wf.Rev = 0
	wf.CreatedAt, wf.UpdatedAt = time.Time{}, time.Time{}
	wf.CreatedBy = updated.UID

	latest, err := s.workflows.LatestVersion(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	wf.Ver = latest + 1

	out, err := s.workflows.CreateVersion(ctx, wf)
	if err != nil {
		return nil, err
	}

	if err := s.drafts.Delete(ctx, updated.ID); err != nil {
		s.logger.Error("draft delete after publish failed", "draft", updated.ID, "error", err)
	}

	recordPublish(ctx, "workflow")
	s.audit.Write(ctx, updated.UID, "publish-workflow", out)
	return out, nil
}

// Delete removes the draft without publishing. Owner only.
func (s *WorkflowDraftService) Delete(ctx context.Context, draftID string) error {
	p, _, err := s.ownedDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if err := s.drafts.Delete(ctx, draftID); err != nil {
		return err
	}
	s.audit.Write(ctx, p.UID, "delete-workflow-draft", map[string]string{"id": draftID})
	return nil
}

// List returns the caller's workflow drafts.
func (s *WorkflowDraftService) List(ctx context.Context) ([]*models.WorkflowDraft, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.drafts.ListByOwner(ctx, models.DraftKindWorkflow, p.UID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.WorkflowDraft, 0, len(recs))
	for _, rec := range recs {
		d, err := decodeWorkflowDraft(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Find retrieves one draft; owners and administrators only.
func (s *WorkflowDraftService) Find(ctx context.Context, draftID string) (*models.WorkflowDraft, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.findKind(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if rec.UID != p.UID && !p.Admin {
		return nil, apperr.Forbidden("draft %q belongs to another user", draftID)
	}
	return decodeWorkflowDraft(rec)
}

// ownedDraft loads the draft and verifies the caller owns it.
func (s *WorkflowDraftService) ownedDraft(ctx context.Context, draftID string) (*auth.Principal, *repository.DraftRecord, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.findKind(ctx, draftID)
	if err != nil {
		return nil, nil, err
	}
	if rec.UID != p.UID {
		return nil, nil, apperr.Forbidden("draft %q belongs to another user", draftID)
	}
	return p, rec, nil
}

func (s *WorkflowDraftService) findKind(ctx context.Context, draftID string) (*repository.DraftRecord, error) {
	rec, err := s.drafts.Find(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if rec.Kind != models.DraftKindWorkflow {
		return nil, apperr.NotFound("workflow draft %q does not exist", draftID)
	}
	return rec, nil
}

func workflowDraftRecord(draft *models.WorkflowDraft) (*repository.DraftRecord, error) {
	body := *draft
	body.Rev = 0
	raw, err := json.Marshal(&body)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow draft: %w", err)
	}
	return &repository.DraftRecord{
		ID:        draft.ID,
		Kind:      models.DraftKindWorkflow,
		UID:       draft.UID,
		TargetID:  draft.WorkflowID,
		TargetVer: draft.WorkflowVer,
		Body:      raw,
	}, nil
}

func decodeWorkflowDraft(rec *repository.DraftRecord) (*models.WorkflowDraft, error) {
	draft := &models.WorkflowDraft{}
	if err := json.Unmarshal(rec.Body, draft); err != nil {
		return nil, fmt.Errorf("unmarshal workflow draft %q: %w", rec.ID, err)
	}
	draft.ID, draft.Rev, draft.UID = rec.ID, rec.Rev, rec.UID
	draft.CreatedAt, draft.UpdatedAt = rec.CreatedAt, rec.UpdatedAt
	return draft, nil
}
