// Tracing instrumentation for the dispatcher.
package dispatch

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startCommandSpan starts a span for one command invocation.
func (d *Dispatcher) startCommandSpan(ctx context.Context, inv Invocation) (context.Context, trace.Span) {
	ctx, span := d.tracer.Start(ctx, "dispatch.command")
	span.SetAttributes(
		attribute.String("command.verb", inv.Verb),
		attribute.Int("command.args", len(inv.Args)),
	)
	return ctx, span
}

// endCommandSpan records how the command was handled and ends the span.
func (d *Dispatcher) endCommandSpan(span trace.Span, res Result) {
	span.SetAttributes(attribute.Bool("command.builtin", res.Builtin))
	if res.Ref != nil {
		span.SetAttributes(
			attribute.String("command.tier", string(res.Ref.Tier)),
			attribute.String("command.path", res.Ref.Path),
		)
	}
	span.End()
}
