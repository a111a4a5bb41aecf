package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"workflow-registry/backend/internal/services"
	"workflow-registry/backend/pkg/models"
)

// stepIndexParam parses the :index path parameter as a non-negative integer.
func stepIndexParam(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "step index must be a non-negative integer")
	}
	return index, nil
}

// CreateInstance creates a workflow instance without starting an execution
// (POST /api/v1/workflow-instances)
func (s *Server) CreateInstance(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.TriggerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	out, err := s.Instances.CreateInstance(ctx, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

// ListInstances lists the instances of one workflow version, oldest first
// (GET /api/v1/workflow-instances?workflowId=...&workflowVer=...)
func (s *Server) ListInstances(c echo.Context) error {
	id := c.QueryParam("workflowId")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workflowId query parameter is required")
	}
	ver, err := strconv.Atoi(c.QueryParam("workflowVer"))
	if err != nil || ver < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "workflowVer must be a positive integer")
	}

	out, err := s.Instances.ListByWorkflow(c.Request().Context(), id, ver)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetInstance returns one workflow instance
// (GET /api/v1/workflow-instances/:id)
func (s *Server) GetInstance(c echo.Context) error {
	out, err := s.Instances.Find(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// ChangeInstanceStatus sets the overall status of an instance
// (PUT /api/v1/workflow-instances/:id/status)
func (s *Server) ChangeInstanceStatus(c echo.Context) error {
	ctx := c.Request().Context()

	var body struct {
		Status models.WorkflowStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	if err := s.Instances.ChangeWorkflowStatus(ctx, c.Param("id"), body.Status); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangeStepStatus patches the status entry of one step
// (PUT /api/v1/workflow-instances/:id/steps/:index/status)
func (s *Server) ChangeStepStatus(c echo.Context) error {
	ctx := c.Request().Context()

	index, err := stepIndexParam(c)
	if err != nil {
		return err
	}

	var req services.ChangeStepStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	if err := s.Instances.ChangeStepStatus(ctx, c.Param("id"), index, &req); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SaveStepAttribs replaces the attribute bag of one step
// (PUT /api/v1/workflow-instances/:id/steps/:index/attribs)
func (s *Server) SaveStepAttribs(c echo.Context) error {
	ctx := c.Request().Context()

	index, err := stepIndexParam(c)
	if err != nil {
		return err
	}

	var attribs models.StepAttribs
	if err := c.Bind(&attribs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	if err := s.Instances.SaveStepAttribs(ctx, c.Param("id"), index, attribs); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
