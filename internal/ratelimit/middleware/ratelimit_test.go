package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"admissions/internal/audit"
	"admissions/internal/ratelimit/config"
	"admissions/internal/ratelimit/limiter"
	"admissions/internal/ratelimit/models"
	"admissions/internal/ratelimit/store/window"
	"admissions/pkg/platform/middleware/metadata"
	"admissions/pkg/requestcontext"
)

type stubLimiter struct {
	result models.Result
	err    error
	calls  []string
}

func (s *stubLimiter) Check(_ context.Context, profile models.Profile, identifier string) (models.Result, error) {
	s.calls = append(s.calls, profile.String()+"|"+identifier)
	return s.result, s.err
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) LogSecurityEvent(ctx context.Context, action audit.Action, ip string, details map[string]any) {
	m.Called(ctx, action, ip, details)
}

// MiddlewareSuite covers headers, rejection and fail-open behavior.
//
// Justification: the middleware is the only place the limiter's decision
// reaches clients, and its error path must never block traffic.
type MiddlewareSuite struct {
	suite.Suite
	logger  *slog.Logger
	auditor *MockAuditor
	reached bool
	next    http.Handler
	resetAt time.Time
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.auditor = new(MockAuditor)
	s.reached = false
	s.next = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.reached = true
		w.WriteHeader(http.StatusOK)
	})
	s.resetAt = time.Date(2026, 9, 1, 9, 15, 0, 0, time.UTC)
}

func (s *MiddlewareSuite) serve(m *Middleware, profile models.Profile, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	metadata.Handler(m.RateLimit(profile)(s.next)).ServeHTTP(w, req)
	return w
}

func (s *MiddlewareSuite) request(xff string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	return req
}

func (s *MiddlewareSuite) TestAllowedSetsHeaders() {
	stub := &stubLimiter{result: models.Result{Allowed: true, Limit: 5, Remaining: 4, ResetAt: s.resetAt}}

	w := s.serve(New(stub, s.logger), models.ProfileAuth, s.request("203.0.113.5, 10.0.0.1"))

	s.True(s.reached)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("5", w.Header().Get("X-RateLimit-Limit"))
	s.Equal("4", w.Header().Get("X-RateLimit-Remaining"))
	s.Equal("2026-09-01T09:15:00Z", w.Header().Get("X-RateLimit-Reset"))
	s.Empty(w.Header().Get("Retry-After"))
	s.Equal([]string{"auth|203.0.113.5"}, stub.calls)
}

func (s *MiddlewareSuite) TestRejectedWrites429AndAudits() {
	stub := &stubLimiter{result: models.Result{Allowed: false, Limit: 5, Remaining: 0, ResetAt: s.resetAt, RetryAfter: 900}}
	s.auditor.On("LogSecurityEvent", mock.Anything, audit.ActionRateLimitExceeded, "203.0.113.5",
		mock.MatchedBy(func(d map[string]any) bool { return d["profile"] == "auth" && d["path"] == "/auth/login" }),
	).Return()

	w := s.serve(New(stub, s.logger, WithAuditor(s.auditor)), models.ProfileAuth, s.request("203.0.113.5"))

	s.False(s.reached)
	s.Equal(http.StatusTooManyRequests, w.Code)
	s.Equal("900", w.Header().Get("Retry-After"))
	s.Equal("0", w.Header().Get("X-RateLimit-Remaining"))

	var body ExceededResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("rate_limit_exceeded", body.Error)
	s.Equal(900, body.RetryAfter)
	s.auditor.AssertExpectations(s.T())
}

func (s *MiddlewareSuite) TestStoreErrorFailsOpen() {
	stub := &stubLimiter{err: errors.New("redis: connection refused")}

	w := s.serve(New(stub, s.logger, WithAuditor(s.auditor)), models.ProfileAPI, s.request("203.0.113.5"))

	s.True(s.reached, "store failures let the request through")
	s.Equal(http.StatusOK, w.Code)
	s.Empty(w.Header().Get("X-RateLimit-Limit"))
	s.auditor.AssertNotCalled(s.T(), "LogSecurityEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *MiddlewareSuite) TestUnknownClientWithoutHeaders() {
	stub := &stubLimiter{result: models.Result{Allowed: true, Limit: 100, Remaining: 99, ResetAt: s.resetAt}}

	s.serve(New(stub, s.logger), models.ProfileAPI, s.request(""))

	s.Equal([]string{"api|" + metadata.UnknownClient}, stub.calls)
}

func (s *MiddlewareSuite) TestWithoutMetadataMiddleware() {
	stub := &stubLimiter{result: models.Result{Allowed: true, Limit: 100, Remaining: 99, ResetAt: s.resetAt}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.2")

	New(stub, s.logger).RateLimit(models.ProfileAPI)(s.next).ServeHTTP(httptest.NewRecorder(), req)

	s.Equal([]string{"api|198.51.100.2"}, stub.calls)
}

func (s *MiddlewareSuite) TestDisabledPassesThrough() {
	stub := &stubLimiter{result: models.Result{Allowed: false}}

	w := s.serve(New(stub, s.logger, WithDisabled(true)), models.ProfileAuth, s.request("203.0.113.5"))

	s.True(s.reached)
	s.Equal(http.StatusOK, w.Code)
	s.Empty(stub.calls)
}

// TestAuthProfileEndToEnd drives the real registry and memory store through
// the middleware: five logins pass, the sixth is rejected.
func (s *MiddlewareSuite) TestAuthProfileEndToEnd() {
	registry, err := limiter.NewRegistry(config.DefaultConfig(), window.NewInMemoryStore())
	s.Require().NoError(err)
	m := New(registry, s.logger)
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	var codes []int
	for range 6 {
		req := s.request("192.0.2.44")
		req = req.WithContext(requestcontext.WithTime(req.Context(), now))
		codes = append(codes, s.serve(m, models.ProfileAuth, req).Code)
	}

	s.Equal([]int{200, 200, 200, 200, 200, 429}, codes)
}
