package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"workflow-registry/backend/pkg/models"
)

// CreateWorkflow publishes a new workflow version
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var wf models.Workflow
	if err := c.Bind(&wf); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	out, err := s.Workflows.Create(ctx, &wf)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

// UpdateWorkflow rewrites an existing workflow version
// (PUT /api/v1/workflows/:id/:ver)
func (s *Server) UpdateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	ver, err := versionParam(c)
	if err != nil {
		return err
	}

	var wf models.Workflow
	if err := c.Bind(&wf); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	wf.ID = c.Param("id")
	wf.Ver = ver

	out, err := s.Workflows.Update(ctx, &wf)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListWorkflows returns the latest version of every workflow
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	out, err := s.Workflows.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetLatestWorkflow returns the latest version of one workflow
// (GET /api/v1/workflows/:id)
func (s *Server) GetLatestWorkflow(c echo.Context) error {
	out, err := s.Workflows.FindLatest(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListWorkflowVersions returns every version of one workflow
// (GET /api/v1/workflows/:id/versions)
func (s *Server) ListWorkflowVersions(c echo.Context) error {
	out, err := s.Workflows.ListVersions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetWorkflow returns one specific workflow version
// (GET /api/v1/workflows/:id/:ver)
func (s *Server) GetWorkflow(c echo.Context) error {
	ver, err := versionParam(c)
	if err != nil {
		return err
	}
	out, err := s.Workflows.Find(c.Request().Context(), c.Param("id"), ver)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// triggerBody is the optional request body for triggering; the workflow
// identity comes from the path.
type triggerBody struct {
	Input        map[string]any `json:"input,omitempty"`
	AssignmentID string         `json:"assignmentId,omitempty"`
}

// TriggerWorkflow starts one execution of a workflow version
// (POST /api/v1/workflows/:id/:ver/trigger, :ver of "latest" or 0 picks the
// latest published version)
func (s *Server) TriggerWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	ver := 0
	if raw := c.Param("ver"); raw != "latest" {
		v, err := versionParam(c)
		if err != nil {
			return err
		}
		ver = v
	}

	var body triggerBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	out, err := s.Trigger.Trigger(ctx, &models.TriggerRequest{
		WorkflowID:   c.Param("id"),
		WorkflowVer:  ver,
		Input:        body.Input,
		AssignmentID: body.AssignmentID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}
