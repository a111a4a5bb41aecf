package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"workflow-registry/backend/internal/services"
	"workflow-registry/backend/pkg/models"
)

// CreateTemplateDraft opens a workflow template draft
// (POST /api/v1/template-drafts)
func (s *Server) CreateTemplateDraft(c echo.Context) error {
	ctx := c.Request().Context()

	var req services.CreateTemplateDraftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	out, err := s.TemplateDrafts.Create(ctx, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

// ListTemplateDrafts returns the caller's workflow template drafts
// (GET /api/v1/template-drafts)
func (s *Server) ListTemplateDrafts(c echo.Context) error {
	out, err := s.TemplateDrafts.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetTemplateDraft returns one workflow template draft
// (GET /api/v1/template-drafts/:id)
func (s *Server) GetTemplateDraft(c echo.Context) error {
	out, err := s.TemplateDrafts.Find(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateTemplateDraft saves edits to a workflow template draft
// (PUT /api/v1/template-drafts/:id)
func (s *Server) UpdateTemplateDraft(c echo.Context) error {
	ctx := c.Request().Context()

	var draft models.TemplateDraft
	if err := c.Bind(&draft); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	draft.ID = c.Param("id")

	out, err := s.TemplateDrafts.Update(ctx, &draft)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// DeleteTemplateDraft discards a workflow template draft
// (DELETE /api/v1/template-drafts/:id)
func (s *Server) DeleteTemplateDraft(c echo.Context) error {
	if err := s.TemplateDrafts.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PublishTemplateDraft promotes a draft into the next workflow template version
// (POST /api/v1/template-drafts/:id/publish)
func (s *Server) PublishTemplateDraft(c echo.Context) error {
	ctx := c.Request().Context()

	var draft models.TemplateDraft
	if err := c.Bind(&draft); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	draft.ID = c.Param("id")

	out, err := s.TemplateDrafts.Publish(ctx, &draft)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

// CreateWorkflowDraft opens a workflow draft
// (POST /api/v1/workflow-drafts)
func (s *Server) CreateWorkflowDraft(c echo.Context) error {
	ctx := c.Request().Context()

	var req services.CreateWorkflowDraftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	out, err := s.WorkflowDrafts.Create(ctx, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

// ListWorkflowDrafts returns the caller's workflow drafts
// (GET /api/v1/workflow-drafts)
func (s *Server) ListWorkflowDrafts(c echo.Context) error {
	out, err := s.WorkflowDrafts.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetWorkflowDraft returns one workflow draft
// (GET /api/v1/workflow-drafts/:id)
func (s *Server) GetWorkflowDraft(c echo.Context) error {
	out, err := s.WorkflowDrafts.Find(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateWorkflowDraft saves edits to a workflow draft
// (PUT /api/v1/workflow-drafts/:id)
func (s *Server) UpdateWorkflowDraft(c echo.Context) error {
	ctx := c.Request().Context()

	var draft models.WorkflowDraft
	if err := c.Bind(&draft); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	draft.ID = c.Param("id")

	out, err := s.WorkflowDrafts.Update(ctx, &draft)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// DeleteWorkflowDraft discards a workflow draft
// (DELETE /api/v1/workflow-drafts/:id)
func (s *Server) DeleteWorkflowDraft(c echo.Context) error {
	if err := s.WorkflowDrafts.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PublishWorkflowDraft promotes a draft into the next workflow version
// (POST /api/v1/workflow-drafts/:id/publish)
func (s *Server) PublishWorkflowDraft(c echo.Context) error {
	ctx := c.Request().Context()

	var draft models.WorkflowDraft
	if err := c.Bind(&draft); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	draft.ID = c.Param("id")

	out, err := s.WorkflowDrafts.Publish(ctx, &draft)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}
