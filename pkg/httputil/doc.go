// Package httputil carries the HTTP plumbing shared by every handler
// group: JSON response writers with a uniform error envelope, request
// body and query parsing, and small protocol-level middlewares.
//
// # Responses
//
// Success writers encode the payload directly:
//
//	httputil.WriteSuccess(w, profile)
//	httputil.WriteCreated(w, ticket)
//	httputil.WriteNoContent(w)
//
// Error writers all produce the same envelope, {"error": message}, so
// clients parse one shape regardless of status code:
//
//	httputil.WriteValidationError(w, "either path or requirement is required")
//	httputil.WriteUnauthorized(w, "authentication required")
//	httputil.WriteForbidden(w, "administrator rank required")
//
// # Requests
//
// ParseJSONOrError writes the 400 itself so handlers stay linear:
//
//	var req CheckAccessRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//
//	limit, _ := httputil.ParseQueryInt(r, "limit", 50)
//
// # Middleware
//
// Protocol-level wrappers, attached to the API subrouter ahead of the
// handlers. Authentication, logging, recovery, and rate limiting live
// in pkg/middleware.
//
//	httputil.Chain(
//		httputil.ContentTypeMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
