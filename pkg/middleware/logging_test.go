package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/contextkeys"
	"github.com/lanternhq/lantern/pkg/observability"
)

// recordingHTTPAudit captures LogHTTPRequest calls.
type recordingHTTPAudit struct {
	audit.Logger
	mu       sync.Mutex
	statuses []int
}

func newRecordingHTTPAudit() *recordingHTTPAudit {
	return &recordingHTTPAudit{Logger: audit.NewNoOpLogger()}
}

func (r *recordingHTTPAudit) LogHTTPRequest(ctx context.Context, req *http.Request, statusCode int, duration time.Duration, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, statusCode)
	return nil
}

func TestLoggingMiddleware_LogsByStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantMsg string
	}{
		{name: "success", status: http.StatusOK, wantMsg: "request completed"},
		{name: "client error", status: http.StatusNotFound, wantMsg: "request rejected"},
		{name: "server error", status: http.StatusBadGateway, wantMsg: "request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewLoggingMiddleware(observability.NewLogger(observability.InfoLevel, &buf), nil, nil)
			handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, "/documents", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			out := buf.String()
			assert.Contains(t, out, tt.wantMsg)
			assert.Contains(t, out, fmt.Sprintf(`"status":%d`, tt.status))
			assert.Contains(t, out, `"method":"GET"`)
			assert.Contains(t, out, `"path":"/documents"`)
		})
	}
}

func TestLoggingMiddleware_DefaultsToOKWithoutWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	m := NewLoggingMiddleware(observability.NewLogger(observability.InfoLevel, &buf), nil, nil)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Contains(t, buf.String(), `"status":200`)
	assert.Contains(t, buf.String(), "request completed")
}

func TestLoggingMiddleware_IncludesRequestMetadata(t *testing.T) {
	var buf bytes.Buffer
	m := NewLoggingMiddleware(observability.NewLogger(observability.InfoLevel, &buf), nil, nil)
	inner := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler := RequestID(inner)

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("X-Request-ID", "edge-42")
	ctx := contextkeys.WithUserEmail(req.Context(), "alice@example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"edge-42"`)
	assert.Contains(t, out, `"user_email":"alice@example.com"`)
}

func TestLoggingMiddleware_RecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	m := NewLoggingMiddleware(quietLogger(), nil, metrics)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"t-1"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/tickets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	counter := metrics.HTTPRequestsTotal.WithLabelValues("POST", "/tickets", "201")
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))
}

func TestLoggingMiddleware_ForwardsToAudit(t *testing.T) {
	auditLog := newRecordingHTTPAudit()
	m := NewLoggingMiddleware(quietLogger(), auditLog, nil)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	req := httptest.NewRequest(http.MethodGet, "/documents/secret", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	auditLog.mu.Lock()
	defer auditLog.mu.Unlock()
	require.Len(t, auditLog.statuses, 1)
	assert.Equal(t, http.StatusForbidden, auditLog.statuses[0])
}

func TestStatusRecorder_TracksBytesWritten(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	sr.WriteHeader(http.StatusAccepted)
	n, err := sr.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	assert.Equal(t, http.StatusAccepted, sr.status)
	assert.Equal(t, int64(5), sr.written)
}
