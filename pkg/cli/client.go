package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/clientcredentials"
)

// log carries CLI diagnostics. Command output goes to stdout; anything
// about how a command is doing its work goes here, on stderr.
var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	if os.Getenv("LANTERN_DEBUG") != "" {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// defaultRegistry returns the service URL commands default to when the
// -registry flag is not given.
func defaultRegistry() string {
	if url := os.Getenv("LANTERN_REGISTRY_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// resolveToken picks the bearer token for service calls: the -token
// flag wins, then LANTERN_TOKEN.
func resolveToken(flagToken string) string {
	if flagToken != "" {
		return flagToken
	}
	return os.Getenv("LANTERN_TOKEN")
}

// newAPIClient builds the HTTP client service commands use. When OAuth
// client credentials are configured in the environment the client
// fetches and refreshes its own tokens; otherwise every request carries
// the static bearer token, which may be empty for servers running with
// authentication disabled.
func newAPIClient(token string) *http.Client {
	clientID := os.Getenv("LANTERN_OAUTH_CLIENT_ID")
	tokenURL := os.Getenv("LANTERN_OAUTH_TOKEN_URL")
	if clientID != "" && tokenURL != "" {
		log.Debugf("Using OAuth client credentials from %s", tokenURL)
		cc := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: os.Getenv("LANTERN_OAUTH_CLIENT_SECRET"),
			TokenURL:     tokenURL,
		}
		return cc.Client(context.Background())
	}
	return &http.Client{
		Transport: &bearerTransport{token: token, base: http.DefaultTransport},
	}
}

// bearerTransport adds the Authorization header to every request.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.base.RoundTrip(req)
}

// serviceError turns a non-2xx response into an error, preferring the
// message from the service's JSON error envelope over the raw body.
func serviceError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return fmt.Errorf("service returned error: %s - %s", resp.Status, envelope.Error)
	}
	return fmt.Errorf("service returned error: %s - %s", resp.Status, string(body))
}

// printJSON writes indented JSON to stdout, for commands given -json.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
