package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPEngineClient is an HTTP implementation of the EngineClient interface.
type HTTPEngineClient struct {
	url string
}

// NewHTTPEngineClient creates a new HTTPEngineClient for the engine base URL.
func NewHTTPEngineClient(url string) *HTTPEngineClient {
	return &HTTPEngineClient{url: url}
}

// StartExecution asks the engine to start one named execution.
func (c *HTTPEngineClient) StartExecution(ctx context.Context, in StartExecutionInput) (string, error) {
	requestBody, err := json.Marshal(map[string]any{
		"stateMachineId": in.StateMachineID,
		"name":           in.Name,
		"input":          json.RawMessage(in.Input),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/executions", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call execution engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The engine reports its error code in the body; keep it verbatim.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("engine returned status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		ExecutionArn string `json:"executionArn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode engine response: %w", err)
	}

	return out.ExecutionArn, nil
}
