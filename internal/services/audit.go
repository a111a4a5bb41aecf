package services

import (
	"context"
	"encoding/json"
	"time"

	"workflow-registry/backend/internal/logging"
	"workflow-registry/backend/internal/repository"
)

// Auditor records business actions. Writes are fire-and-forget: they run
// detached from the request and failures are logged, never propagated, so
// audit logging can never block or fail an operation.
type Auditor struct {
	store  repository.AuditStore
	logger *logging.Logger
}

// NewAuditor creates a new Auditor.
func NewAuditor(store repository.AuditStore, logger *logging.Logger) *Auditor {
	return &Auditor{store: store, logger: logger}
}

// Write records one action asynchronously.
func (a *Auditor) Write(ctx context.Context, uid, action string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		a.logger.Error("audit payload marshal failed", "action", action, "error", err)
		return
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		writeCtx, cancel := context.WithTimeout(detached, 5*time.Second)
		defer cancel()
		if err := a.store.Write(writeCtx, uid, action, payload); err != nil {
			a.logger.Error("audit write failed", "action", action, "uid", uid, "error", err)
		}
	}()
}
