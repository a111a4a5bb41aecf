package services

import "context"

// StartExecutionInput is the request sent to the external execution engine.
type StartExecutionInput struct {
	// StateMachineID identifies the state machine to run the execution on.
	StateMachineID string `json:"stateMachineId"`
	// Name deterministically identifies the execution: workflow id, encoded
	// version and instance id joined by underscores.
	Name string `json:"name"`
	// Input is the serialized {meta, input} envelope.
	Input []byte `json:"input"`
}

// EngineClient is the interface to the external execution engine that
// actually runs workflow steps.
type EngineClient interface {
	// StartExecution starts one execution and returns its ARN. Engine errors
	// are surfaced verbatim with the engine error code in the message.
	StartExecution(ctx context.Context, in StartExecutionInput) (string, error)
}
