package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lanternhq/lantern/pkg/contextkeys"
)

// RequestID tags every request with an ID, honoring an X-Request-ID
// already set by an upstream proxy and minting a UUID otherwise. The ID
// is stored in the request context and echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", id)
		ctx := contextkeys.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
