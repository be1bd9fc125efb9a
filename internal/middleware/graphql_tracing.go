package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"tablegraph/internal/gqlrequest"
	"tablegraph/internal/logging"
	"tablegraph/internal/observability"

	"go.opentelemetry.io/otel"
)

// GraphQLTracingMiddleware instruments GraphQL execution with an inner span.
// Requests without a query (GraphiQL page loads, health probes routed here)
// pass through without a span.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || strings.TrimSpace(analysis.Envelope.Query) == "" {
				next.ServeHTTP(w, r)
				return
			}
			meta, _ := gqlrequest.ExecMetaFromContext(r.Context())

			tracer := otel.Tracer("tablegraph/graphql")
			ctx, span := tracer.Start(r.Context(), "graphql.execute")
			defer span.End()
			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			if span.IsRecording() {
				span.SetAttributes(observability.GraphQLSpanAttributes(analysis, meta)...)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
