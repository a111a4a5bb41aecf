// Package api contains the HTTP handlers for the workflow registry service.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"workflow-registry/backend/internal/services"
)

// Server holds the dependencies for the API server.
type Server struct {
	StepTemplates     *services.StepTemplateService
	WorkflowTemplates *services.WorkflowTemplateService
	Workflows         *services.WorkflowService
	TemplateDrafts    *services.TemplateDraftService
	WorkflowDrafts    *services.WorkflowDraftService
	Instances         *services.InstanceService
	Trigger           *services.TriggerService
}

// NewServer creates a new Server.
func NewServer(
	stepTemplates *services.StepTemplateService,
	workflowTemplates *services.WorkflowTemplateService,
	workflows *services.WorkflowService,
	templateDrafts *services.TemplateDraftService,
	workflowDrafts *services.WorkflowDraftService,
	instances *services.InstanceService,
	trigger *services.TriggerService,
) *Server {
	return &Server{
		StepTemplates:     stepTemplates,
		WorkflowTemplates: workflowTemplates,
		Workflows:         workflows,
		TemplateDrafts:    templateDrafts,
		WorkflowDrafts:    workflowDrafts,
		Instances:         instances,
		Trigger:           trigger,
	}
}

// RegisterRoutes mounts every API route on the given group. Authentication
// middleware is the caller's concern.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.POST("/step-templates", s.CreateStepTemplate)
	g.PUT("/step-templates/:id/:ver", s.UpdateStepTemplate)
	g.GET("/step-templates", s.ListStepTemplates)
	g.GET("/step-templates/:id", s.GetLatestStepTemplate)
	g.GET("/step-templates/:id/versions", s.ListStepTemplateVersions)
	g.GET("/step-templates/:id/:ver", s.GetStepTemplate)

	g.POST("/workflow-templates", s.CreateWorkflowTemplate)
	g.PUT("/workflow-templates/:id/:ver", s.UpdateWorkflowTemplate)
	g.GET("/workflow-templates", s.ListWorkflowTemplates)
	g.GET("/workflow-templates/:id", s.GetLatestWorkflowTemplate)
	g.GET("/workflow-templates/:id/versions", s.ListWorkflowTemplateVersions)
	g.GET("/workflow-templates/:id/:ver", s.GetWorkflowTemplate)

	g.POST("/workflows", s.CreateWorkflow)
	g.PUT("/workflows/:id/:ver", s.UpdateWorkflow)
	g.GET("/workflows", s.ListWorkflows)
	g.GET("/workflows/:id", s.GetLatestWorkflow)
	g.GET("/workflows/:id/versions", s.ListWorkflowVersions)
	g.GET("/workflows/:id/:ver", s.GetWorkflow)
	g.POST("/workflows/:id/:ver/trigger", s.TriggerWorkflow)

	g.POST("/template-drafts", s.CreateTemplateDraft)
	g.GET("/template-drafts", s.ListTemplateDrafts)
	g.GET("/template-drafts/:id", s.GetTemplateDraft)
	g.PUT("/template-drafts/:id", s.UpdateTemplateDraft)
	g.DELETE("/template-drafts/:id", s.DeleteTemplateDraft)
	g.POST("/template-drafts/:id/publish", s.PublishTemplateDraft)

	g.POST("/workflow-drafts", s.CreateWorkflowDraft)
	g.GET("/workflow-drafts", s.ListWorkflowDrafts)
	g.GET("/workflow-drafts/:id", s.GetWorkflowDraft)
	g.PUT("/workflow-drafts/:id", s.UpdateWorkflowDraft)
	g.DELETE("/workflow-drafts/:id", s.DeleteWorkflowDraft)
	g.POST("/workflow-drafts/:id/publish", s.PublishWorkflowDraft)

	g.POST("/workflow-instances", s.CreateInstance)
	g.GET("/workflow-instances", s.ListInstances)
	g.GET("/workflow-instances/:id", s.GetInstance)
	g.PUT("/workflow-instances/:id/status", s.ChangeInstanceStatus)
	g.PUT("/workflow-instances/:id/steps/:index/status", s.ChangeStepStatus)
	g.PUT("/workflow-instances/:id/steps/:index/attribs", s.SaveStepAttribs)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "workflow-registry",
		Version:   "1.0.0",
	})
}
