package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeterProvider creates a test meter provider with a manual reader
func setupTestMeterProvider(t *testing.T) (*metric.MeterProvider, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return provider, reader
}

func collectMetricNames(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}
	names := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = m
		}
	}
	return names
}

func TestNewOTelMetrics(t *testing.T) {
	t.Run("successful initialization", func(t *testing.T) {
		provider, _ := setupTestMeterProvider(t)
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				t.Logf("Error shutting down provider: %v", err)
			}
		}()

		m, err := NewOTelMetrics()
		if err != nil {
			t.Fatalf("NewOTelMetrics() error = %v, want nil", err)
		}

		if m == nil {
			t.Fatal("NewOTelMetrics() returned nil metrics")
		}

		// Verify that all metric instruments are initialized
		if m.httpRequestsTotal == nil {
			t.Error("httpRequestsTotal is nil")
		}
		if m.httpRequestDuration == nil {
			t.Error("httpRequestDuration is nil")
		}
		if m.accessChecksTotal == nil {
			t.Error("accessChecksTotal is nil")
		}
		if m.accessCheckDuration == nil {
			t.Error("accessCheckDuration is nil")
		}
		if m.dbConnectionsActive == nil {
			t.Error("dbConnectionsActive is nil")
		}
		if m.dbQueryDuration == nil {
			t.Error("dbQueryDuration is nil")
		}
		if m.dbQueriesTotal == nil {
			t.Error("dbQueriesTotal is nil")
		}
		if m.cacheHitsTotal == nil {
			t.Error("cacheHitsTotal is nil")
		}
		if m.cacheMissesTotal == nil {
			t.Error("cacheMissesTotal is nil")
		}
		if m.storageOperations == nil {
			t.Error("storageOperations is nil")
		}
		if m.storageDuration == nil {
			t.Error("storageDuration is nil")
		}
	})
}

func TestOTelMetrics_RecordHTTPRequest(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		route        string
		statusCode   int
		duration     time.Duration
		requestSize  int64
		responseSize int64
	}{
		{
			name:         "successful GET request",
			method:       "GET",
			route:        "/api/v1/me",
			statusCode:   200,
			duration:     100 * time.Millisecond,
			requestSize:  0,
			responseSize: 1024,
		},
		{
			name:         "POST request with request body",
			method:       "POST",
			route:        "/api/v1/access/check",
			statusCode:   200,
			duration:     250 * time.Millisecond,
			requestSize:  512,
			responseSize: 256,
		},
		{
			name:         "denied response",
			method:       "GET",
			route:        "/api/v1/admin/users",
			statusCode:   403,
			duration:     50 * time.Millisecond,
			requestSize:  0,
			responseSize: 128,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, reader := setupTestMeterProvider(t)
			defer func() {
				if err := provider.Shutdown(context.Background()); err != nil {
					t.Logf("Error shutting down provider: %v", err)
				}
			}()

			m, err := NewOTelMetrics()
			if err != nil {
				t.Fatalf("NewOTelMetrics() error = %v", err)
			}

			ctx := context.Background()
			m.RecordHTTPRequest(ctx, tt.method, tt.route, tt.statusCode, tt.duration, tt.requestSize, tt.responseSize)

			names := collectMetricNames(t, reader)

			counter, ok := names["http.server.requests"]
			if !ok {
				t.Fatal("HTTP request counter not recorded")
			}
			if sum, ok := counter.Data.(metricdata.Sum[int64]); ok {
				if len(sum.DataPoints) > 0 && sum.DataPoints[0].Value != 1 {
					t.Errorf("Expected counter value 1, got %d", sum.DataPoints[0].Value)
				}
			}

			if _, ok := names["http.server.duration"]; !ok {
				t.Error("HTTP request duration not recorded")
			}
			if _, ok := names["http.server.request.size"]; tt.requestSize > 0 && !ok {
				t.Error("HTTP request size not recorded when requestSize > 0")
			}
			if _, ok := names["http.server.response.size"]; tt.responseSize > 0 && !ok {
				t.Error("HTTP response size not recorded when responseSize > 0")
			}
		})
	}
}

func TestOTelMetrics_RecordAccessCheck(t *testing.T) {
	tests := []struct {
		name    string
		clause  string
		allowed bool
	}{
		{name: "department grant", clause: "department", allowed: true},
		{name: "project grant", clause: "project", allowed: true},
		{name: "denied", clause: "none", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, reader := setupTestMeterProvider(t)
			defer func() {
				if err := provider.Shutdown(context.Background()); err != nil {
					t.Logf("Error shutting down provider: %v", err)
				}
			}()

			m, err := NewOTelMetrics()
			if err != nil {
				t.Fatalf("NewOTelMetrics() error = %v", err)
			}

			ctx := context.Background()
			m.RecordAccessCheck(ctx, tt.clause, tt.allowed, 30*time.Microsecond)

			names := collectMetricNames(t, reader)

			counter, ok := names["access.checks.total"]
			if !ok {
				t.Fatal("Access checks counter not recorded")
			}
			if sum, ok := counter.Data.(metricdata.Sum[int64]); ok {
				if len(sum.DataPoints) > 0 && sum.DataPoints[0].Value != 1 {
					t.Errorf("Expected counter value 1, got %d", sum.DataPoints[0].Value)
				}
			}

			if _, ok := names["access.check.duration"]; !ok {
				t.Error("Access check duration not recorded")
			}
		})
	}
}

func TestOTelMetrics_RecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		duration  time.Duration
		err       error
	}{
		{
			name:      "successful SELECT",
			operation: "SELECT",
			duration:  50 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "failed UPDATE",
			operation: "UPDATE",
			duration:  75 * time.Millisecond,
			err:       errors.New("constraint violation"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, reader := setupTestMeterProvider(t)
			defer func() {
				if err := provider.Shutdown(context.Background()); err != nil {
					t.Logf("Error shutting down provider: %v", err)
				}
			}()

			m, err := NewOTelMetrics()
			if err != nil {
				t.Fatalf("NewOTelMetrics() error = %v", err)
			}

			ctx := context.Background()
			m.RecordDBQuery(ctx, tt.operation, tt.duration, tt.err)

			names := collectMetricNames(t, reader)

			if _, ok := names["db.queries.total"]; !ok {
				t.Error("DB queries counter not recorded")
			}
			if _, ok := names["db.query.duration"]; !ok {
				t.Error("DB query duration not recorded")
			}
		})
	}
}

func TestOTelMetrics_CacheOperations(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	}()

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordCacheHit(ctx, "profile")
	m.RecordCacheHit(ctx, "profile")
	m.RecordCacheMiss(ctx, "profile")
	m.RecordCacheEviction(ctx, "profile")
	m.UpdateCacheSize(ctx, "profile", 1024)

	names := collectMetricNames(t, reader)

	for _, name := range []string{
		"cache.hits.total",
		"cache.misses.total",
		"cache.evictions.total",
		"cache.size",
	} {
		if _, ok := names[name]; !ok {
			t.Errorf("%s not recorded", name)
		}
	}

	if sum, ok := names["cache.hits.total"].Data.(metricdata.Sum[int64]); ok {
		if len(sum.DataPoints) > 0 && sum.DataPoints[0].Value != 2 {
			t.Errorf("Expected 2 cache hits, got %d", sum.DataPoints[0].Value)
		}
	}
}

func TestOTelMetrics_RecordStorageOperation(t *testing.T) {
	tests := []struct {
		name        string
		operation   string
		storageType string
		duration    time.Duration
		bytes       int64
		err         error
	}{
		{
			name:        "successful read",
			operation:   "read",
			storageType: "s3",
			duration:    100 * time.Millisecond,
			bytes:       2048,
			err:         nil,
		},
		{
			name:        "failed read",
			operation:   "read",
			storageType: "filesystem",
			duration:    50 * time.Millisecond,
			bytes:       0,
			err:         errors.New("object not found"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, reader := setupTestMeterProvider(t)
			defer func() {
				if err := provider.Shutdown(context.Background()); err != nil {
					t.Logf("Error shutting down provider: %v", err)
				}
			}()

			m, err := NewOTelMetrics()
			if err != nil {
				t.Fatalf("NewOTelMetrics() error = %v", err)
			}

			ctx := context.Background()
			m.RecordStorageOperation(ctx, tt.operation, tt.storageType, tt.duration, tt.bytes, tt.err)

			names := collectMetricNames(t, reader)

			if _, ok := names["storage.operations.total"]; !ok {
				t.Error("Storage operations counter not recorded")
			}
			if _, ok := names["storage.operation.duration"]; !ok {
				t.Error("Storage operation duration not recorded")
			}
			if _, ok := names["storage.bytes"]; tt.bytes > 0 && !ok {
				t.Error("Storage bytes not recorded when bytes > 0")
			}
		})
	}
}

func TestOTelMetrics_MultipleOperations(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	}()

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m.RecordHTTPRequest(ctx, "GET", "/api/v1/me", 200, 100*time.Millisecond, 0, 1024)
	}

	names := collectMetricNames(t, reader)
	if sum, ok := names["http.server.requests"].Data.(metricdata.Sum[int64]); ok {
		if len(sum.DataPoints) > 0 && sum.DataPoints[0].Value != 5 {
			t.Errorf("Expected counter value 5, got %d", sum.DataPoints[0].Value)
		}
	}
}
