package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sketchforge"

// StartTranspileSpan starts a span for one transpile attempt.
// The project root is added once it is resolved.
func StartTranspileSpan(ctx context.Context, attemptID, path string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "transpile",
		trace.WithAttributes(
			attribute.String("attempt.id", attemptID),
			attribute.String("sketch.path", path),
		),
	)
}

// StartRunSpan starts a span for one assistant run, from thread creation to the reply.
func StartRunSpan(ctx context.Context, assistant string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "assistant.run",
		trace.WithAttributes(attribute.String("assistant.name", assistant)),
	)
}

// StartResyncSpan starts a span for a vector store resync.
func StartResyncSpan(ctx context.Context, store, folder string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "resync",
		trace.WithAttributes(
			attribute.String("vector_store.name", store),
			attribute.String("resync.folder", folder),
		),
	)
}

// StartProvisionSpan starts a span for assistant and vector store provisioning.
func StartProvisionSpan(ctx context.Context, root string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "provision",
		trace.WithAttributes(attribute.String("sketch.root", root)),
	)
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
