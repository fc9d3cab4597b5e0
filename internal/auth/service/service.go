package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"admissions/internal/audit"
	"admissions/internal/auth/models"
	dErrors "admissions/pkg/domain-errors"
	"admissions/pkg/requestcontext"
	"admissions/pkg/secrets"
)

type TokenIssuer interface {
	GenerateAccessToken(ctx context.Context, actor requestcontext.Actor) (string, time.Time, error)
}

type Auditor interface {
	Log(ctx context.Context, entry audit.Entry)
	LogFailure(ctx context.Context, action audit.Action, userID, errorMessage string, details map[string]any)
}

// Service authenticates configured accounts and issues access tokens.
type Service struct {
	accounts map[string]models.Account
	// dummyHash is compared against when the email is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyHash string
	tokens   TokenIssuer
	audit    Auditor
	logger   *slog.Logger
}

func New(accounts []models.Account, tokens TokenIssuer, auditor Auditor, logger *slog.Logger) *Service {
	byEmail := make(map[string]models.Account, len(accounts))
	for _, a := range accounts {
		if a.Email == "" || a.PasswordHash == "" {
			continue
		}
		byEmail[normalizeEmail(a.Email)] = a
	}
	dummy, err := secrets.Hash(uuid.NewString())
	if err != nil {
		logger.Error("failed to prepare dummy password hash", "error", err)
	}
	return &Service{
		accounts:  byEmail,
		dummyHash: dummy,
		tokens:    tokens,
		audit:     auditor,
		logger:    logger,
	}
}

// Login verifies the credentials and returns a bearer token. Every attempt
// is audited as USER_LOGIN or LOGIN_FAILED.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	email := normalizeEmail(req.Email)
	account, known := s.accounts[email]

	hash := s.dummyHash
	if known {
		hash = account.PasswordHash
	}
	if err := secrets.Verify(req.Password, hash); err != nil || !known {
		if known && !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.logger.ErrorContext(ctx, "password verification failed", "error", err)
		}
		s.audit.LogFailure(ctx, audit.ActionLoginFailed, account.UserID, "invalid credentials", map[string]any{
			"email":        email,
			"knownAccount": known,
		})
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}

	actor := requestcontext.Actor{UserID: account.UserID, Email: account.Email, Role: account.Role}
	token, expiresAt, err := s.tokens.GenerateAccessToken(ctx, actor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	s.audit.Log(ctx, audit.Entry{
		Action:    audit.ActionUserLogin,
		UserID:    account.UserID,
		UserEmail: account.Email,
		UserRole:  account.Role,
	})

	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		ExpiresIn:   int(expiresAt.Sub(requestcontext.Now(ctx)).Seconds()),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
