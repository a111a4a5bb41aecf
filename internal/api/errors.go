package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"workflow-registry/backend/internal/apperr"
)

// httpError translates service errors into echo HTTP errors. Unclassified
// errors stay opaque 500s so internal details never leak to clients.
func httpError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindConstraint:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperr.KindForbidden:
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case apperr.KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperr.KindConflict:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case apperr.KindUpstream:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
