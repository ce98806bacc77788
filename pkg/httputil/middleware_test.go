package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainOrdersOutermostFirst(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(tag("first"), tag("second"), tag("third"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, []string{"first", "second", "third", "handler"}, order)
}

func TestContentTypeMiddleware(t *testing.T) {
	handler := ContentTypeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{name: "json passes", method: "POST", contentType: "application/json", wantStatus: http.StatusOK},
		{name: "json with charset passes", method: "POST", contentType: "application/json; charset=utf-8", wantStatus: http.StatusOK},
		{name: "missing header passes", method: "POST", contentType: "", wantStatus: http.StatusOK},
		{name: "plain text rejected", method: "POST", contentType: "text/plain", wantStatus: http.StatusBadRequest},
		{name: "unparseable rejected", method: "PUT", contentType: ";;;", wantStatus: http.StatusBadRequest},
		{name: "patch checked", method: "PATCH", contentType: "application/xml", wantStatus: http.StatusBadRequest},
		{name: "get ignored", method: "GET", contentType: "text/plain", wantStatus: http.StatusOK},
		{name: "delete ignored", method: "DELETE", contentType: "text/plain", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/api/v1/access/check", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusBadRequest {
				var envelope map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
				assert.Contains(t, envelope["error"], "application/json")
			}
		})
	}
}

func TestMaxBytesMiddleware(t *testing.T) {
	handler := MaxBytesMiddleware(64)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if !ParseJSONOrError(w, r, &body) {
			return
		}
		WriteSuccess(w, body)
	}))

	t.Run("UnderLimit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/feedback", strings.NewReader(`{"rating": "up"}`))

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("OverLimitFailsInDecoder", func(t *testing.T) {
		w := httptest.NewRecorder()
		oversized := `{"comment": "` + strings.Repeat("x", 200) + `"}`
		req := httptest.NewRequest("POST", "/api/v1/feedback", strings.NewReader(oversized))

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
