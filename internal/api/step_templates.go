package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"workflow-registry/backend/pkg/models"
)

// versionParam parses the :ver path parameter as a positive integer.
func versionParam(c echo.Context) (int, error) {
	ver, err := strconv.Atoi(c.Param("ver"))
	if err != nil || ver < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "version must be a positive integer")
	}
	return ver, nil
}

// CreateStepTemplate publishes a new step template version
// (POST /api/v1/step-templates)
func (s *Server) CreateStepTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	var st models.StepTemplate
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	out, err := s.StepTemplates.Create(ctx, &st)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

// UpdateStepTemplate rewrites an existing step template version
// (PUT /api/v1/step-templates/:id/:ver)
func (s *Server) UpdateStepTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	ver, err := versionParam(c)
	if err != nil {
		return err
	}

	var st models.StepTemplate
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	st.ID = c.Param("id")
	st.Ver = ver

	out, err := s.StepTemplates.Update(ctx, &st)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListStepTemplates returns the latest version of every step template
// (GET /api/v1/step-templates)
func (s *Server) ListStepTemplates(c echo.Context) error {
	out, err := s.StepTemplates.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetLatestStepTemplate returns the latest version of one step template
// (GET /api/v1/step-templates/:id)
func (s *Server) GetLatestStepTemplate(c echo.Context) error {
	out, err := s.StepTemplates.FindLatest(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListStepTemplateVersions returns every version of one step template
// (GET /api/v1/step-templates/:id/versions)
func (s *Server) ListStepTemplateVersions(c echo.Context) error {
	out, err := s.StepTemplates.ListVersions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetStepTemplate returns one specific step template version
// (GET /api/v1/step-templates/:id/:ver)
func (s *Server) GetStepTemplate(c echo.Context) error {
	ver, err := versionParam(c)
	if err != nil {
		return err
	}
	out, err := s.StepTemplates.Find(c.Request().Context(), c.Param("id"), ver)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}
