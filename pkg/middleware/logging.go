package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/contextkeys"
	"github.com/lanternhq/lantern/pkg/observability"
)

// LoggingMiddleware logs every request with its outcome, records the
// HTTP metrics and forwards the request to the audit trail.
type LoggingMiddleware struct {
	logger  *observability.Logger
	audit   audit.Logger
	metrics *observability.Metrics
}

// NewLoggingMiddleware creates the request logging middleware. Audit
// and metrics are optional.
func NewLoggingMiddleware(logger *observability.Logger, auditLogger audit.Logger, metrics *observability.Metrics) *LoggingMiddleware {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if auditLogger == nil {
		auditLogger = audit.NewNoOpLogger()
	}
	return &LoggingMiddleware{
		logger:  logger,
		audit:   auditLogger,
		metrics: metrics,
	}
}

// Handler wraps an HTTP handler with request logging.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := contextkeys.WithRequestStartTime(r.Context(), start)
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r.WithContext(ctx))

		duration := time.Since(start)
		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.status,
			"duration_ms": duration.Milliseconds(),
		}
		if id := contextkeys.GetRequestID(ctx); id != "" {
			fields["request_id"] = id
		}
		if email := contextkeys.GetUserEmail(r.Context()); email != "" {
			fields["user_email"] = email
		}

		entry := m.logger.WithFields(fields)
		switch {
		case recorder.status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case recorder.status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request completed")
		}

		if m.metrics != nil {
			route := routeTemplate(r)
			m.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
			m.metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())
			if r.ContentLength > 0 {
				m.metrics.HTTPRequestSize.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
			}
			m.metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(recorder.written))
		}

		_ = m.audit.LogHTTPRequest(r.Context(), r, recorder.status, duration, nil)
	})
}

// routeTemplate returns the matched mux route pattern, so metric labels
// stay bounded instead of carrying every concrete URL.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// statusRecorder captures the response status and size.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += int64(n)
	return n, err
}
