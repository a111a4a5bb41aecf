package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"workflow-registry/backend/internal/auth"
	"workflow-registry/backend/internal/services"
	"workflow-registry/backend/pkg/models"
)

// mcpContext attaches the machine principal MCP tool calls run as. The MCP
// surface sits outside the bearer-auth API group.
func mcpContext(ctx context.Context) context.Context {
	return auth.WithPrincipal(ctx, &auth.Principal{UID: "mcp@local"})
}

type Server struct {
	mcpServer *server.MCPServer
	workflows *services.WorkflowService
	instances *services.InstanceService
	trigger   *services.TriggerService
}

func NewServer(workflows *services.WorkflowService, instances *services.InstanceService, trigger *services.TriggerService) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Workflow Registry",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		workflows: workflows,
		instances: instances,
		trigger:   trigger,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List the latest published version of every workflow"),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_workflow",
			mcp.WithDescription("Get a workflow version; omit version for the latest"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The workflow id")),
			mcp.WithNumber("version", mcp.Description("The workflow version; omit for the latest")),
		),
		s.handleGetWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"trigger_workflow",
			mcp.WithDescription("Start one execution of a workflow on the execution engine"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The workflow id")),
			mcp.WithNumber("version", mcp.Description("The workflow version; omit for the latest")),
		),
		s.handleTriggerWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_instance_status",
			mcp.WithDescription("Get the status of a workflow instance, including per-step statuses"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The instance id")),
		),
		s.handleGetInstanceStatus,
	)
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflows, err := s.workflows.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(workflows)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	var wf *models.Workflow
	var err error
	if version, ok := args["version"].(float64); ok && version > 0 {
		wf, err = s.workflows.Find(ctx, id, int(version))
	} else {
		wf, err = s.workflows.FindLatest(ctx, id)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get workflow: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(wf)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleTriggerWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	req := &models.TriggerRequest{WorkflowID: id}
	if version, ok := args["version"].(float64); ok && version > 0 {
		req.WorkflowVer = int(version)
	}

	result, err := s.trigger.Trigger(mcpContext(ctx), req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to trigger workflow: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetInstanceStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	inst, err := s.instances.Find(mcpContext(ctx), id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get instance: %v", err)), nil
	}

	status := map[string]any{
		"id":         inst.ID,
		"wfId":       inst.WfID,
		"wfVer":      inst.WfVer,
		"wfStatus":   inst.WfStatus,
		"stStatuses": inst.StStatuses,
	}
	jsonBytes, _ := json.Marshal(status)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
