package middleware

import (
	"net/http"

	"tablegraph/internal/gqlrequest"
	"tablegraph/internal/logging"
	"tablegraph/internal/observability"
)

// GraphQLRequestAnalysisMiddleware decodes and analyzes the GraphQL request once
// and stores derived metadata in request context for downstream middleware.
// schemaFingerprint identifies the compiled schema declaration and is stamped
// onto every request's logs and spans. Must run after role extraction so the
// execution metadata can carry the active role.
func GraphQLRequestAnalysisMiddleware(schemaFingerprint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)

			meta := gqlrequest.ExecMeta{Fingerprint: schemaFingerprint}
			if roleCtx, ok := DBRoleFromContext(ctx); ok {
				meta.Role = roleCtx.Role
			}
			if analysis != nil {
				meta.OperationName = analysis.OperationName
				meta.OperationType = analysis.OperationType
				meta.OperationHash = analysis.OperationHash
			}
			ctx = gqlrequest.WithExecMeta(ctx, meta)

			logger := logging.FromContext(ctx)
			logFields := observability.GraphQLLogFields(ctx, analysis, meta)
			if len(logFields) > 0 {
				ctx = logging.WithLogger(ctx, logger.WithFields(logFields...))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
