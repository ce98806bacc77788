package cli

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	original := os.Getenv("LANTERN_REGISTRY_URL")
	defer os.Setenv("LANTERN_REGISTRY_URL", original)

	os.Unsetenv("LANTERN_REGISTRY_URL")
	assert.Equal(t, "http://localhost:8080", defaultRegistry())

	os.Setenv("LANTERN_REGISTRY_URL", "https://lantern.example.com")
	assert.Equal(t, "https://lantern.example.com", defaultRegistry())
}

func TestResolveToken(t *testing.T) {
	original := os.Getenv("LANTERN_TOKEN")
	defer os.Setenv("LANTERN_TOKEN", original)

	os.Setenv("LANTERN_TOKEN", "env-token")
	assert.Equal(t, "flag-token", resolveToken("flag-token"), "flag should win over env")
	assert.Equal(t, "env-token", resolveToken(""))

	os.Unsetenv("LANTERN_TOKEN")
	assert.Equal(t, "", resolveToken(""))
}

func TestBearerTransport(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &http.Client{Transport: &bearerTransport{token: "secret", base: http.DefaultTransport}}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer secret", gotAuth)

	// An empty token leaves the request untouched
	client = &http.Client{Transport: &bearerTransport{token: "", base: http.DefaultTransport}}
	resp, err = client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "", gotAuth)
}

func TestNewAPIClient_StaticToken(t *testing.T) {
	originalID := os.Getenv("LANTERN_OAUTH_CLIENT_ID")
	originalURL := os.Getenv("LANTERN_OAUTH_TOKEN_URL")
	defer func() {
		os.Setenv("LANTERN_OAUTH_CLIENT_ID", originalID)
		os.Setenv("LANTERN_OAUTH_TOKEN_URL", originalURL)
	}()
	os.Unsetenv("LANTERN_OAUTH_CLIENT_ID")
	os.Unsetenv("LANTERN_OAUTH_TOKEN_URL")

	client := newAPIClient("tok")
	transport, ok := client.Transport.(*bearerTransport)
	require.True(t, ok, "expected a bearer transport without OAuth env")
	assert.Equal(t, "tok", transport.token)
}

func TestNewAPIClient_OAuth(t *testing.T) {
	// A token endpoint that issues one fixed token
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"oauth-token","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	originalID := os.Getenv("LANTERN_OAUTH_CLIENT_ID")
	originalSecret := os.Getenv("LANTERN_OAUTH_CLIENT_SECRET")
	originalURL := os.Getenv("LANTERN_OAUTH_TOKEN_URL")
	defer func() {
		os.Setenv("LANTERN_OAUTH_CLIENT_ID", originalID)
		os.Setenv("LANTERN_OAUTH_CLIENT_SECRET", originalSecret)
		os.Setenv("LANTERN_OAUTH_TOKEN_URL", originalURL)
	}()
	os.Setenv("LANTERN_OAUTH_CLIENT_ID", "lanternctl")
	os.Setenv("LANTERN_OAUTH_CLIENT_SECRET", "shhh")
	os.Setenv("LANTERN_OAUTH_TOKEN_URL", tokenServer.URL+"/token")

	var gotAuth string
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer apiServer.Close()

	client := newAPIClient("")
	resp, err := client.Get(apiServer.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer oauth-token", gotAuth)
}

func TestServiceError(t *testing.T) {
	t.Run("json envelope", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"admin privileges required"}`))
		}))
		defer server.Close()

		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		err = serviceError(resp)
		assert.Contains(t, err.Error(), "403")
		assert.Contains(t, err.Error(), "admin privileges required")
	})

	t.Run("raw body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream unreachable"))
		}))
		defer server.Close()

		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		err = serviceError(resp)
		assert.Contains(t, err.Error(), "upstream unreachable")
	})
}
