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

// CreateTemplateDraftRequest starts editing a workflow template. IsNew begins
// a brand-new template; otherwise the current latest version is copied into
// the draft.
type CreateTemplateDraftRequest struct {
	TemplateID string `json:"templateId" validate:"required,recordid"`
	IsNew      bool   `json:"isNew"`
}

// TemplateDraftService manages the mutable staging records workflow
// templates are edited through before publishing.
type TemplateDraftService struct {
	drafts    repository.DraftStore
	templates *WorkflowTemplateService
	audit     *Auditor
	logger    *logging.Logger
}

// NewTemplateDraftService creates a new TemplateDraftService.
func NewTemplateDraftService(drafts repository.DraftStore, templates *WorkflowTemplateService, audit *Auditor, logger *logging.Logger) *TemplateDraftService {
	return &TemplateDraftService{drafts: drafts, templates: templates, audit: audit, logger: logger}
}

// Create opens a draft. For an existing template the latest version is copied
// verbatim; a brand-new template is seeded with sane defaults. Fails when a
// draft for the same target already exists, or when IsNew targets an id that
// already has published versions.
func (s *TemplateDraftService) Create(ctx context.Context, req *CreateTemplateDraftRequest) (*models.TemplateDraft, error) {
	p, err := ensureAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateManifest(req); err != nil {
		return nil, err
	}

	latest, err := s.templates.LatestVersion(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	var tpl *models.WorkflowTemplate
	switch {
	case req.IsNew && latest > 0:
		return nil, apperr.Conflict("workflow template %q already exists; draft it without isNew", req.TemplateID)
	case req.IsNew:
		tpl = &models.WorkflowTemplate{
			ID:                  req.TemplateID,
			Ver:                 1,
			Title:               req.TemplateID,
			InstanceTTL:         models.NoInstanceTTL,
			RunSpec:             models.DefaultRunSpec(),
			PropsOverrideOption: models.OverrideOption{Allowed: []string{}},
			SelectedSteps:       []models.SelectedStep{},
		}
	case latest == 0:
		return nil, apperr.NotFound("workflow template %q has no published versions", req.TemplateID)
	default:
		tpl, err = s.templates.Find(ctx, req.TemplateID, latest)
		if err != nil {
			return nil, err
		}
	}

	draft := &models.TemplateDraft{
		ID:          models.DraftID(p.UID, req.TemplateID, latest),
		UID:         p.UID,
		TemplateID:  req.TemplateID,
		TemplateVer: latest,
		Template:    tpl,
	}
	rec, err := templateDraftRecord(draft)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.audit.Write(ctx, p.UID, "create-template-draft", draft)
	return decodeTemplateDraft(rec)
}

// Update persists draft edits under the optimistic rev check. Only the owner
// may update, and the draft's target identity is frozen at creation.
func (s *TemplateDraftService) Update(ctx context.Context, draft *models.TemplateDraft) (*models.TemplateDraft, error) {
	p, stored, err := s.ownedDraft(ctx, draft.ID)
	if err != nil {
		return nil, err
	}
	if draft.TemplateID != stored.TargetID || draft.TemplateVer != stored.TargetVer {
		return nil, apperr.Validation("the draft's target template cannot change mid-edit")
	}
	if err := validateManifest(draft); err != nil {
		return nil, err
	}

	draft.UID = stored.UID
	draft.Template.ID = stored.TargetID
	if draft.Template.Ver < 1 {
		draft.Template.Ver = 1
	}
	if err := s.templates.ResolveSteps(ctx, draft.Template); err != nil {
		return nil, err
	}

	rec, err := templateDraftRecord(draft)
	if err != nil {
		return nil, err
	}
	rec.Rev = draft.Rev
	if err := s.drafts.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.audit.Write(ctx, p.UID, "update-template-draft", draft)
	return decodeTemplateDraft(rec)
}

// Publish runs one final update, promotes the draft content into the next
// immutable version, and deletes the draft. The version-number read and the
// conditional write are two separate store calls; a racing publish of the
// same target surfaces as a retryable conflict, never a silent overwrite.
func (s *TemplateDraftService) Publish(ctx context.Context, draft *models.TemplateDraft) (*models.WorkflowTemplate, error) {
	updated, err := s.Update(ctx, draft)
	if err != nil {
		return nil, err
	}

	tpl := updated.Template
	tpl.Rev = 0
	tpl.CreatedAt, tpl.UpdatedAt = time.Time{}, time.Time{}
	tpl.CreatedBy = updated.UID

	latest, err := s.templates.LatestVersion(ctx, tpl.ID)
	if err != nil {
		return nil, err
	}
	tpl.Ver = latest + 1

	out, err := s.templates.CreateVersion(ctx, tpl)
	if err != nil {
		return nil, err
	}

	if err := s.drafts.Delete(ctx, updated.ID); err != nil {
		// The version is durably published; a lingering draft is the lesser
		// problem and can be deleted explicitly.
		s.logger.Error("draft delete after publish failed", "draft", updated.ID, "error", err)
	}

	recordPublish(ctx, "workflow-template")
	s.audit.Write(ctx, updated.UID, "publish-workflow-template", out)
	return out, nil
}

// Delete removes the draft without publishing. Owner only.
func (s *TemplateDraftService) Delete(ctx context.Context, draftID string) error {
	p, _, err := s.ownedDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if err := s.drafts.Delete(ctx, draftID); err != nil {
		return err
	}
	s.audit.Write(ctx, p.UID, "delete-template-draft", map[string]string{"id": draftID})
	return nil
}

// List returns the caller's template drafts.
func (s *TemplateDraftService) List(ctx context.Context) ([]*models.TemplateDraft, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.drafts.ListByOwner(ctx, models.DraftKindTemplate, p.UID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.TemplateDraft, 0, len(recs))
	for _, rec := range recs {
		d, err := decodeTemplateDraft(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Find retrieves one draft; owners and administrators only.
func (s *TemplateDraftService) Find(ctx context.Context, draftID string) (*models.TemplateDraft, error) {
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
	return decodeTemplateDraft(rec)
}

// ownedDraft loads the draft and verifies the caller owns it.
func (s *TemplateDraftService) ownedDraft(ctx context.Context, draftID string) (*auth.Principal, *repository.DraftRecord, error) {
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

func (s *TemplateDraftService) findKind(ctx context.Context, draftID string) (*repository.DraftRecord, error) {
	rec, err := s.drafts.Find(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if rec.Kind != models.DraftKindTemplate {
		return nil, apperr.NotFound("template draft %q does not exist", draftID)
	}
	return rec, nil
}

func templateDraftRecord(draft *models.TemplateDraft) (*repository.DraftRecord, error) {
	body := *draft
	body.Rev = 0
	raw, err := json.Marshal(&body)
	if err != nil {
		return nil, fmt.Errorf("marshal template draft: %w", err)
	}
	return &repository.DraftRecord{
		ID:        draft.ID,
		Kind:      models.DraftKindTemplate,
		UID:       draft.UID,
		TargetID:  draft.TemplateID,
		TargetVer: draft.TemplateVer,
		Body:      raw,
	}, nil
}

func decodeTemplateDraft(rec *repository.DraftRecord) (*models.TemplateDraft, error) {
	draft := &models.TemplateDraft{}
	if err := json.Unmarshal(rec.Body, draft); err != nil {
		return nil, fmt.Errorf("unmarshal template draft %q: %w", rec.ID, err)
	}
	draft.ID, draft.Rev, draft.UID = rec.ID, rec.Rev, rec.UID
	draft.CreatedAt, draft.UpdatedAt = rec.CreatedAt, rec.UpdatedAt
	return draft, nil
}
