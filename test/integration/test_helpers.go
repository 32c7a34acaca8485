//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"techtrack/internal/app"
	"techtrack/internal/config"
	"techtrack/internal/database"
	"techtrack/internal/model"
)

const (
	adminUsername = "admin"
	adminPassword = "changethis"
)

// newServer runs the full application against the Postgres database named by
// TEST_DATABASE_URL, starting from empty tables.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, url, 2, 0)
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE users, audit_entries RESTART IDENTITY`)
	require.NoError(t, err)
	db.Close()

	cfg := &config.Config{
		ServerPort:       "0",
		RequestTimeout:   10 * time.Second,
		DBDriver:         config.DriverPostgres,
		DatabaseURL:      url,
		DBMaxConns:       4,
		SecretKey:        "integration-secret",
		AccessTokenTTL:   config.DefaultAccessTokenTTL,
		BcryptCost:       4,
		FirstSuperuser:   model.FirstSuperuser{Username: adminUsername, Email: "admin@techtrack.local", Password: adminPassword},
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
		LogFormat:        "text",
	}

	application, err := app.New(ctx, cfg)
	require.NoError(t, err)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		server.Close()
		application.Close()
	})

	return server
}

func loginToken(t *testing.T, baseURL string, username string, password string) string {
	t.Helper()

	resp := doJSONRequest(t, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var token model.Token
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&token))
	require.Equal(t, "bearer", token.TokenType)

	return token.AccessToken
}

func doJSONRequest(t *testing.T, method string, target string, payload any, accessToken string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req, err := http.NewRequest(method, target, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}
