package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("workflow-registry/backend/services")

var publishCounter, _ = meter.Int64Counter(
	"registry.versions.published",
	metric.WithDescription("Number of immutable versions published from drafts"),
)

// recordPublish counts one published version by entity kind.
func recordPublish(ctx context.Context, kind string) {
	publishCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
