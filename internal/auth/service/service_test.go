package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"admissions/internal/audit"
	"admissions/internal/auth/models"
	dErrors "admissions/pkg/domain-errors"
	"admissions/pkg/requestcontext"
	"admissions/pkg/secrets"
)

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) GenerateAccessToken(ctx context.Context, actor requestcontext.Actor) (string, time.Time, error) {
	args := m.Called(ctx, actor)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Log(ctx context.Context, entry audit.Entry) {
	m.Called(ctx, entry)
}

func (m *MockAuditor) LogFailure(ctx context.Context, action audit.Action, userID, errorMessage string, details map[string]any) {
	m.Called(ctx, action, userID, errorMessage, details)
}

// LoginSuite covers credential checks and login auditing.
//
// Justification: every login attempt must leave exactly one audit entry,
// and unknown emails must be indistinguishable from wrong passwords.
type LoginSuite struct {
	suite.Suite
	tokens  *MockTokenIssuer
	auditor *MockAuditor
	service *Service
	now     time.Time
	ctx     context.Context
}

func TestLoginSuite(t *testing.T) {
	suite.Run(t, new(LoginSuite))
}

func (s *LoginSuite) SetupSuite() {
	hash, err := secrets.Hash("s3cret-pass")
	s.Require().NoError(err)
	s.now = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.service = New([]models.Account{
		{UserID: "admin-1", Email: "Admin@Uni.Example", Role: "admin", PasswordHash: hash},
		{UserID: "skipped", Email: "", PasswordHash: hash},
	}, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *LoginSuite) SetupTest() {
	s.tokens = new(MockTokenIssuer)
	s.auditor = new(MockAuditor)
	s.service.tokens = s.tokens
	s.service.audit = s.auditor
}

func (s *LoginSuite) TestSuccess() {
	actor := requestcontext.Actor{UserID: "admin-1", Email: "Admin@Uni.Example", Role: "admin"}
	s.tokens.On("GenerateAccessToken", mock.Anything, actor).Return("token-abc", s.now.Add(15*time.Minute), nil)
	s.auditor.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Entry) bool {
		return e.Action == audit.ActionUserLogin && e.UserID == "admin-1" && e.UserRole == "admin"
	})).Return()

	res, err := s.service.Login(s.ctx, &models.LoginRequest{Email: " admin@uni.example ", Password: "s3cret-pass"})

	s.Require().NoError(err)
	s.Equal("token-abc", res.AccessToken)
	s.Equal("Bearer", res.TokenType)
	s.Equal(900, res.ExpiresIn)
	s.auditor.AssertExpectations(s.T())
}

func (s *LoginSuite) TestWrongPassword() {
	s.auditor.On("LogFailure", mock.Anything, audit.ActionLoginFailed, "admin-1", "invalid credentials",
		mock.MatchedBy(func(d map[string]any) bool { return d["knownAccount"] == true }),
	).Return()

	_, err := s.service.Login(s.ctx, &models.LoginRequest{Email: "admin@uni.example", Password: "nope"})

	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.tokens.AssertNotCalled(s.T(), "GenerateAccessToken", mock.Anything, mock.Anything)
	s.auditor.AssertExpectations(s.T())
}

func (s *LoginSuite) TestUnknownEmail() {
	s.auditor.On("LogFailure", mock.Anything, audit.ActionLoginFailed, "", "invalid credentials",
		mock.MatchedBy(func(d map[string]any) bool { return d["email"] == "ghost@uni.example" && d["knownAccount"] == false }),
	).Return()

	_, err := s.service.Login(s.ctx, &models.LoginRequest{Email: "ghost@uni.example", Password: "s3cret-pass"})

	s.Require().Error(err)
	s.Equal("invalid email or password", err.Error(), "same message as a wrong password")
	s.auditor.AssertExpectations(s.T())
}

func (s *LoginSuite) TestTokenFailure() {
	s.tokens.On("GenerateAccessToken", mock.Anything, mock.Anything).Return("", time.Time{}, errors.New("signing failed"))

	_, err := s.service.Login(s.ctx, &models.LoginRequest{Email: "admin@uni.example", Password: "s3cret-pass"})

	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.auditor.AssertNotCalled(s.T(), "Log", mock.Anything, mock.Anything)
}
