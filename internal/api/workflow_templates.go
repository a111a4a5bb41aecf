package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"workflow-registry/backend/pkg/models"
)

// CreateWorkflowTemplate publishes a new workflow template version
// (POST /api/v1/workflow-templates)
func (s *Server) CreateWorkflowTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	var tpl models.WorkflowTemplate
	if err := c.Bind(&tpl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	out, err := s.WorkflowTemplates.Create(ctx, &tpl)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

// UpdateWorkflowTemplate rewrites an existing workflow template version
// (PUT /api/v1/workflow-templates/:id/:ver)
func (s *Server) UpdateWorkflowTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	ver, err := versionParam(c)
	if err != nil {
		return err
	}

	var tpl models.WorkflowTemplate
	if err := c.Bind(&tpl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	tpl.ID = c.Param("id")
	tpl.Ver = ver

	out, err := s.WorkflowTemplates.Update(ctx, &tpl)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListWorkflowTemplates returns the latest version of every workflow template
// (GET /api/v1/workflow-templates)
func (s *Server) ListWorkflowTemplates(c echo.Context) error {
	out, err := s.WorkflowTemplates.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetLatestWorkflowTemplate returns the latest version of one workflow template
// (GET /api/v1/workflow-templates/:id)
func (s *Server) GetLatestWorkflowTemplate(c echo.Context) error {
	out, err := s.WorkflowTemplates.FindLatest(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListWorkflowTemplateVersions returns every version of one workflow template
// (GET /api/v1/workflow-templates/:id/versions)
func (s *Server) ListWorkflowTemplateVersions(c echo.Context) error {
	out, err := s.WorkflowTemplates.ListVersions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetWorkflowTemplate returns one specific workflow template version
// (GET /api/v1/workflow-templates/:id/:ver)
func (s *Server) GetWorkflowTemplate(c echo.Context) error {
	ver, err := versionParam(c)
	if err != nil {
		return err
	}
	out, err := s.WorkflowTemplates.Find(c.Request().Context(), c.Param("id"), ver)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}
