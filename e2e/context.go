package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"admissions/internal/app"
	"admissions/internal/platform/config"
	"admissions/pkg/secrets"
)

// Credentials of the account seeded into the in-process server.
const (
	AdminEmail    = "admin@example.edu"
	AdminPassword = "correct horse battery"
	AdminToken    = "e2e-admin-token"
)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte
	AccessToken      string
	ClientIP         string

	server *httptest.Server
	app    *app.App
}

// NewTestContext targets BASE_URL when set and otherwise starts a fresh
// in-process server, so limiter windows never leak between scenarios.
func NewTestContext() (*TestContext, error) {
	tc := &TestContext{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		tc.BaseURL = baseURL
		return tc, nil
	}

	hash, err := secrets.Hash(AdminPassword)
	if err != nil {
		return nil, err
	}
	cfg := config.Server{
		Environment:       "test",
		JWTSigningKey:     "e2e-signing-key",
		TokenTTL:          15 * time.Minute,
		AdminToken:        AdminToken,
		AdminEmail:        AdminEmail,
		AdminPasswordHash: hash,
		RateLimit: config.RateLimitConfig{
			Backend:       config.BackendMemory,
			Algorithm:     config.AlgorithmFixedWindow,
			SweepInterval: time.Minute,
		},
		Audit: config.AuditConfig{Backend: config.BackendMemory},
	}
	a, err := app.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return nil, fmt.Errorf("start admissions server: %w", err)
	}
	tc.app = a
	tc.server = httptest.NewServer(a.Handler)
	tc.BaseURL = tc.server.URL
	return tc, nil
}

// Close stops the in-process server, if any.
func (tc *TestContext) Close() error {
	if tc.server == nil {
		return nil
	}
	tc.server.Close()
	return tc.app.Close(context.Background())
}

// Do sends a JSON request and stores the response. The client IP and bearer
// token from earlier steps are attached.
func (tc *TestContext) Do(method, path string, body any, headers map[string]string) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.ClientIP != "" {
		req.Header.Set("X-Forwarded-For", tc.ClientIP)
	}
	if tc.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.AccessToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// Login posts credentials for the seeded account and returns the status.
func (tc *TestContext) Login(password string) (int, error) {
	if err := tc.Do(http.MethodPost, "/auth/login", map[string]string{"email": AdminEmail, "password": password}, nil); err != nil {
		return 0, err
	}
	return tc.LastResponse.StatusCode, nil
}

// AdminHeaders authenticate an operator request.
func (tc *TestContext) AdminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": AdminToken, "X-Admin-Actor-ID": "e2e-operator"}
}

// GetResponseField extracts a top-level field from the JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	v, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %q not found in response", field)
	}
	return v, nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.LastResponse == nil {
		return ""
	}
	return tc.LastResponse.Header.Get(name)
}

func (tc *TestContext) GetLastResponseBody() []byte { return tc.LastResponseBody }

func (tc *TestContext) SetClientIP(ip string) { tc.ClientIP = ip }

func (tc *TestContext) SetAccessToken(token string) { tc.AccessToken = token }
