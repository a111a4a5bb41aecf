package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/internal/logging"
	"workflow-registry/backend/internal/repository"
	"workflow-registry/backend/pkg/models"
)

// ChangeStepStatusRequest is a targeted patch of one step status entry. Nil
// fields are left untouched; the Clear flags remove the timestamp.
type ChangeStepStatusRequest struct {
	Status         models.StepStatus `json:"status" validate:"required"`
	Msg            *string           `json:"msg,omitempty"`
	StartTime      *time.Time        `json:"startTime,omitempty"`
	ClearStartTime bool              `json:"clearStartTime,omitempty"`
	EndTime        *time.Time        `json:"endTime,omitempty"`
	ClearEndTime   bool              `json:"clearEndTime,omitempty"`
}

// InstanceService tracks workflow instances: creation from a workflow version
// and incremental status/attribute reporting from the executing engine.
type InstanceService struct {
	store     repository.InstanceStore
	workflows *WorkflowService
	audit     *Auditor
	logger    *logging.Logger
}

// NewInstanceService creates a new InstanceService.
func NewInstanceService(store repository.InstanceStore, workflows *WorkflowService, audit *Auditor, logger *logging.Logger) *InstanceService {
	return &InstanceService{store: store, workflows: workflows, audit: audit, logger: logger}
}

// CreateForWorkflow creates an instance record of an already-loaded workflow
// version. Every step starts out not_started; the instance TTL is derived from
// the workflow's instanceTtl in days unless that is the no-expiry sentinel.
func (s *InstanceService) CreateForWorkflow(ctx context.Context, wf *models.Workflow, req *models.TriggerRequest) (*models.WorkflowInstance, error) {
	statuses := make([]models.StepStatusEntry, len(wf.SelectedSteps))
	for i := range statuses {
		statuses[i] = models.StepStatusEntry{Status: models.StepStatusNotStarted}
	}

	inst := &models.WorkflowInstance{
		ID:           uuid.NewString(),
		WfID:         wf.ID,
		WfVer:        wf.Ver,
		Wf:           models.InstanceWorkflowKey(wf.ID, wf.Ver),
		WfStatus:     models.WorkflowStatusNotStarted,
		StStatuses:   statuses,
		StAttribs:    make([]models.StepAttribs, len(wf.SelectedSteps)),
		RunSpec:      wf.RunSpec,
		Input:        req.Input,
		Workflow:     instanceSnapshot(wf),
		AssignmentID: req.AssignmentID,
	}
	if wf.InstanceTTL > 0 {
		ttl := time.Now().UTC().AddDate(0, 0, wf.InstanceTTL)
		inst.TTL = &ttl
	}

	if err := s.store.Create(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// CreateInstance resolves the trigger request to a workflow version and
// creates an instance for it. Version zero picks the latest published version.
func (s *InstanceService) CreateInstance(ctx context.Context, req *models.TriggerRequest) (*models.WorkflowInstance, error) {
	if _, err := requirePrincipal(ctx); err != nil {
		return nil, err
	}
	if err := validateManifest(req); err != nil {
		return nil, err
	}
	wf, err := s.findWorkflow(ctx, req.WorkflowID, req.WorkflowVer)
	if err != nil {
		return nil, err
	}
	return s.CreateForWorkflow(ctx, wf, req)
}

// ChangeWorkflowStatus sets the overall status of an instance.
func (s *InstanceService) ChangeWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error {
	p, err := ensureAdmin(ctx)
	if err != nil {
		return err
	}
	switch status {
	case models.WorkflowStatusNotStarted, models.WorkflowStatusInProgress,
		models.WorkflowStatusPaused, models.WorkflowStatusDone, models.WorkflowStatusError:
	default:
		return apperr.Validation("unknown workflow status %q", status)
	}
	if err := s.store.UpdateWorkflowStatus(ctx, id, status); err != nil {
		return err
	}
	s.audit.Write(ctx, p.UID, "change-workflow-status", map[string]any{"id": id, "status": status})
	return nil
}

// ChangeStepStatus patches the status entry of one step. The update touches
// only the addressed index, so handlers reporting different steps of the same
// instance never overwrite each other.
func (s *InstanceService) ChangeStepStatus(ctx context.Context, id string, index int, req *ChangeStepStatusRequest) error {
	p, err := ensureAdmin(ctx)
	if err != nil {
		return err
	}
	switch req.Status {
	case models.StepStatusNotStarted, models.StepStatusInProgress, models.StepStatusPaused,
		models.StepStatusSkipped, models.StepStatusDone, models.StepStatusError:
	default:
		return apperr.Validation("unknown step status %q", req.Status)
	}
	if index < 0 {
		return apperr.Validation("step index must not be negative")
	}

	patch := repository.StepStatusPatch{
		Status:         req.Status,
		Msg:            req.Msg,
		StartTime:      req.StartTime,
		ClearStartTime: req.ClearStartTime,
		EndTime:        req.EndTime,
		ClearEndTime:   req.ClearEndTime,
	}
	if err := s.store.UpdateStepStatus(ctx, id, index, patch); err != nil {
		return err
	}
	s.audit.Write(ctx, p.UID, "change-step-status", map[string]any{"id": id, "index": index, "status": req.Status})
	return nil
}

// SaveStepAttribs replaces the attribute bag of one step.
func (s *InstanceService) SaveStepAttribs(ctx context.Context, id string, index int, attribs models.StepAttribs) error {
	_, err := ensureAdmin(ctx)
	if err != nil {
		return err
	}
	if index < 0 {
		return apperr.Validation("step index must not be negative")
	}
	return s.store.SaveStepAttribs(ctx, id, index, attribs)
}

// Find retrieves one instance.
func (s *InstanceService) Find(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	if _, err := requirePrincipal(ctx); err != nil {
		return nil, err
	}
	return s.store.Find(ctx, id)
}

// ListByWorkflow lists the instances of one workflow version, oldest first.
func (s *InstanceService) ListByWorkflow(ctx context.Context, id string, ver int) ([]*models.WorkflowInstance, error) {
	if _, err := requirePrincipal(ctx); err != nil {
		return nil, err
	}
	return s.store.ListByWorkflow(ctx, models.InstanceWorkflowKey(id, ver))
}

func (s *InstanceService) findWorkflow(ctx context.Context, id string, ver int) (*models.Workflow, error) {
	if ver > 0 {
		return s.workflows.Find(ctx, id, ver)
	}
	return s.workflows.FindLatest(ctx, id)
}

// instanceSnapshot copies the workflow with description and audit fields
// stripped. The snapshot is what engine-side handlers read, so it stays lean.
func instanceSnapshot(wf *models.Workflow) *models.Workflow {
	snap := *wf
	snap.Rev = 0
	snap.Desc = ""
	snap.CreatedBy = ""
	snap.CreatedAt, snap.UpdatedAt = time.Time{}, time.Time{}
	snap.SelectedSteps = make([]models.WorkflowStep, len(wf.SelectedSteps))
	copy(snap.SelectedSteps, wf.SelectedSteps)
	for i := range snap.SelectedSteps {
		snap.SelectedSteps[i].Desc = ""
	}
	return &snap
}
