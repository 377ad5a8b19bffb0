// Package telemetry wires OpenTelemetry tracing (C20) around the three
// suspension points spec.md §5 calls out as cancellable-by-timeout:
// subprocess invocation, git operations, and the LLM call.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbelfort/falcon-ai-sub003/pkg/shared/logging"
)

const tracerName = "github.com/tbelfort/falcon-ai-sub003"

// StartInvocation spans a single agent subprocess invocation.
func StartInvocation(ctx context.Context, agentName, model string) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(tracerName).Start(ctx, "invoker.Invoke",
		trace.WithAttributes(
			attribute.String("agent.name", agentName),
			attribute.String("agent.model", model),
		))
}

// StartGitOperation spans a single git-sync command.
func StartGitOperation(ctx context.Context, op, repoOriginURL string) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(tracerName).Start(ctx, "gitsync."+op,
		trace.WithAttributes(
			attribute.String("git.operation", op),
			attribute.String("git.origin_url", repoOriginURL),
		))
}

// StartEvidenceExtraction spans a single LLM evidence-extraction call.
func StartEvidenceExtraction(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(tracerName).Start(ctx, "evidence.Extract",
		trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
		))
}

// TraceIDField extracts the active span's trace ID as a logging.Fields
// entry, or a no-op Fields value if ctx carries no recording span.
func TraceIDField(ctx context.Context) logging.Fields {
	fields := logging.NewFields()
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return fields
	}
	return fields.TraceID(span.SpanContext().TraceID().String())
}

// EndWithError records err on span (if non-nil) and ends it.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
