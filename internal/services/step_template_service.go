package services

import (
	"context"
	"encoding/json"
	"fmt"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/internal/logging"
	"workflow-registry/backend/internal/repository"
	"workflow-registry/backend/pkg/models"
)

// StepTemplateService manages versioned step templates.
type StepTemplateService struct {
	store  repository.VersionStore
	audit  *Auditor
	logger *logging.Logger
}

// NewStepTemplateService creates a new StepTemplateService.
func NewStepTemplateService(store repository.VersionStore, audit *Auditor, logger *logging.Logger) *StepTemplateService {
	return &StepTemplateService{store: store, audit: audit, logger: logger}
}

// Create publishes a new step template version. The (id, v) pair must not
// exist yet.
func (s *StepTemplateService) Create(ctx context.Context, st *models.StepTemplate) (*models.StepTemplate, error) {
	p, err := ensureAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateManifest(st); err != nil {
		return nil, err
	}

	st.CreatedBy = p.UID
	rec, err := stepTemplateRecord(st)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateVersion(ctx, rec); err != nil {
		return nil, err
	}

	s.audit.Write(ctx, p.UID, "create-step-template", st)
	return decodeStepTemplate(rec)
}

// Update rewrites an existing version in place. This is the rare pre-publish
// fix-up path; the caller must supply the current rev.
func (s *StepTemplateService) Update(ctx context.Context, st *models.StepTemplate) (*models.StepTemplate, error) {
	p, err := ensureAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateManifest(st); err != nil {
		return nil, err
	}

	rec, err := stepTemplateRecord(st)
	if err != nil {
		return nil, err
	}
	rec.Rev = st.Rev
	if err := s.store.UpdateVersion(ctx, rec); err != nil {
		return nil, err
	}

	s.audit.Write(ctx, p.UID, "update-step-template", st)
	return decodeStepTemplate(rec)
}

// Find retrieves one published step template version.
func (s *StepTemplateService) Find(ctx context.Context, id string, ver int) (*models.StepTemplate, error) {
	rec, err := s.store.FindVersion(ctx, id, ver)
	if err != nil {
		return nil, err
	}
	return decodeStepTemplate(rec)
}

// FindLatest retrieves the latest published version of id.
func (s *StepTemplateService) FindLatest(ctx context.Context, id string) (*models.StepTemplate, error) {
	latest, err := s.store.LatestVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, apperr.NotFound("step template %q has no published versions", id)
	}
	return s.Find(ctx, id, latest)
}

// ListVersions returns every version of one step template, newest first.
func (s *StepTemplateService) ListVersions(ctx context.Context, id string) ([]*models.StepTemplate, error) {
	recs, err := s.store.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeStepTemplates(recs)
}

// List returns the latest version of every step template.
func (s *StepTemplateService) List(ctx context.Context) ([]*models.StepTemplate, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return decodeStepTemplates(recs)
}

func stepTemplateRecord(st *models.StepTemplate) (*repository.VersionRecord, error) {
	body := *st
	body.Rev = 0
	raw, err := json.Marshal(&body)
	if err != nil {
		return nil, fmt.Errorf("marshal step template: %w", err)
	}
	return &repository.VersionRecord{
		ID:        st.ID,
		Ver:       st.Ver,
		Body:      raw,
		CreatedBy: st.CreatedBy,
	}, nil
}

func decodeStepTemplate(rec *repository.VersionRecord) (*models.StepTemplate, error) {
	st := &models.StepTemplate{}
	if err := json.Unmarshal(rec.Body, st); err != nil {
		return nil, fmt.Errorf("unmarshal step template %q v%d: %w", rec.ID, rec.Ver, err)
	}
	st.ID, st.Ver, st.Rev = rec.ID, rec.Ver, rec.Rev
	st.CreatedBy = rec.CreatedBy
	st.CreatedAt, st.UpdatedAt = rec.CreatedAt, rec.UpdatedAt
	return st, nil
}

func decodeStepTemplates(recs []*repository.VersionRecord) ([]*models.StepTemplate, error) {
	out := make([]*models.StepTemplate, 0, len(recs))
	for _, rec := range recs {
		st, err := decodeStepTemplate(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
