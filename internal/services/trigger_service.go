package services

import (
	"context"
	"encoding/json"
	"fmt"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/internal/logging"
	"workflow-registry/backend/pkg/models"
)

// TriggerResult reports a successfully started execution.
type TriggerResult struct {
	InstanceID   string `json:"instanceId"`
	WorkflowID   string `json:"workflowId"`
	WorkflowVer  int    `json:"workflowVer"`
	ExecutionARN string `json:"executionArn"`
}

// executionMeta is the metadata half of the envelope handed to the engine so
// step handlers can report status back against the right instance.
type executionMeta struct {
	WfID           string `json:"wfId"`
	WfVer          int    `json:"wfVer"`
	InstanceID     string `json:"instanceId"`
	StateMachineID string `json:"stateMachineId"`
}

type executionEnvelope struct {
	Meta  executionMeta  `json:"meta"`
	Input map[string]any `json:"input,omitempty"`
}

// TriggerService starts executions of workflow versions on the external
// engine, creating the tracking instance first.
type TriggerService struct {
	workflows      *WorkflowService
	instances      *InstanceService
	engine         EngineClient
	stateMachineID string
	audit          *Auditor
	logger         *logging.Logger
}

// NewTriggerService creates a new TriggerService.
func NewTriggerService(workflows *WorkflowService, instances *InstanceService, engine EngineClient, stateMachineID string, audit *Auditor, logger *logging.Logger) *TriggerService {
	return &TriggerService{
		workflows:      workflows,
		instances:      instances,
		engine:         engine,
		stateMachineID: stateMachineID,
		audit:          audit,
		logger:         logger,
	}
}

// Trigger resolves the request to a workflow version, creates an instance and
// starts the engine execution. The run target is checked before any record is
// written so unsupported targets leave no orphaned instance behind.
func (s *TriggerService) Trigger(ctx context.Context, req *models.TriggerRequest) (*TriggerResult, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateManifest(req); err != nil {
		return nil, err
	}

	var wf *models.Workflow
	if req.WorkflowVer > 0 {
		wf, err = s.workflows.Find(ctx, req.WorkflowID, req.WorkflowVer)
	} else {
		wf, err = s.workflows.FindLatest(ctx, req.WorkflowID)
	}
	if err != nil {
		return nil, err
	}

	if wf.RunSpec.Target != models.RunTargetStateMachine {
		return nil, apperr.Validation("run target %q is not supported", wf.RunSpec.Target)
	}

	inst, err := s.instances.CreateForWorkflow(ctx, wf, req)
	if err != nil {
		return nil, err
	}

	envelope, err := json.Marshal(executionEnvelope{
		Meta: executionMeta{
			WfID:           wf.ID,
			WfVer:          wf.Ver,
			InstanceID:     inst.ID,
			StateMachineID: s.stateMachineID,
		},
		Input: req.Input,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal execution input: %w", err)
	}

	arn, err := s.engine.StartExecution(ctx, StartExecutionInput{
		StateMachineID: s.stateMachineID,
		Name:           models.ExecutionName(wf.ID, wf.Ver, inst.ID),
		Input:          envelope,
	})
	if err != nil {
		return nil, apperr.Upstream(err, "engine rejected execution of %s v%d", wf.ID, wf.Ver)
	}

	s.logger.Info("execution started", "workflow", wf.ID, "version", wf.Ver, "instance", inst.ID, "arn", arn)
	s.audit.Write(ctx, p.UID, "trigger-workflow", map[string]any{
		"workflowId": wf.ID, "workflowVer": wf.Ver, "instanceId": inst.ID, "executionArn": arn,
	})

	return &TriggerResult{
		InstanceID:   inst.ID,
		WorkflowID:   wf.ID,
		WorkflowVer:  wf.Ver,
		ExecutionARN: arn,
	}, nil
}
