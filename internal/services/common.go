// Package services implements the business operations of the workflow
// registry: versioned template/workflow CRUD, draft lifecycle, instance
// tracking and triggering.
package services

import (
	"context"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/internal/auth"
	"workflow-registry/backend/pkg/models"
)

// requirePrincipal returns the authenticated caller or a forbidden error.
func requirePrincipal(ctx context.Context) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperr.Forbidden("no authenticated caller")
	}
	return p, nil
}

// ensureAdmin returns the caller if it holds administrator rights.
func ensureAdmin(ctx context.Context) (*auth.Principal, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if !p.Admin {
		return nil, apperr.Forbidden("administrator rights are required for this operation")
	}
	return p, nil
}

// validateManifest runs shape validation and converts failures into the
// client-facing validation error.
func validateManifest(v any) error {
	if err := models.Validate(v); err != nil {
		return apperr.Wrap(err, apperr.KindValidation, "manifest failed validation")
	}
	return nil
}
