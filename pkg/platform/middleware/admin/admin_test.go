package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"admissions/pkg/requestcontext"
)

// AdminMiddlewareSuite tests the admin authorization middleware.
//
// Justification: Security-critical middleware guarding audit log reads and
// rate-limit resets. The invariant "wrong credentials never reach handler"
// must be preserved.
type AdminMiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestAdminMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AdminMiddlewareSuite))
}

func (s *AdminMiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *AdminMiddlewareSuite) serve(token string, req *http.Request) (*httptest.ResponseRecorder, bool, requestcontext.Actor) {
	called := false
	var actor requestcontext.Actor
	handler := RequireAdmin(token, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		actor = requestcontext.GetActor(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, called, actor
}

func (s *AdminMiddlewareSuite) TestTokenValidation() {
	s.Run("correct token passes and attributes operator", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil)
		req.Header.Set("X-Admin-Token", "secret-admin-token")
		req.Header.Set("X-Admin-Actor-ID", "ops-42")

		w, called, actor := s.serve("secret-admin-token", req)

		s.True(called)
		s.Equal(http.StatusOK, w.Code)
		s.Equal("ops-42", actor.UserID)
		s.Equal(RoleAdmin, actor.Role)
	})

	s.Run("wrong token returns 401 and blocks handler", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil)
		req.Header.Set("X-Admin-Token", "wrong-token")

		w, called, _ := s.serve("secret-admin-token", req)

		s.False(called)
		s.Equal(http.StatusUnauthorized, w.Code)
		s.Contains(w.Body.String(), "unauthorized")
	})

	s.Run("missing token returns 401", func() {
		w, called, _ := s.serve("secret-admin-token", httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil))

		s.False(called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("empty configured token never matches", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil)
		req.Header.Set("X-Admin-Token", "")

		_, called, _ := s.serve("", req)

		s.False(called)
	})
}

func (s *AdminMiddlewareSuite) TestAdminRole() {
	s.Run("authenticated admin passes without token", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil)
		req = req.WithContext(requestcontext.WithActor(req.Context(), requestcontext.Actor{UserID: "u-1", Role: RoleAdmin}))

		_, called, actor := s.serve("secret-admin-token", req)

		s.True(called)
		s.Equal("u-1", actor.UserID)
	})

	s.Run("authenticated applicant is rejected", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil)
		req = req.WithContext(requestcontext.WithActor(req.Context(), requestcontext.Actor{UserID: "u-2", Role: "applicant"}))

		w, called, _ := s.serve("secret-admin-token", req)

		s.False(called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}
