// Package gdpr implements the data export and erasure rights for applicants.
package gdpr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"admissions/internal/audit"
	dErrors "admissions/pkg/domain-errors"
	"admissions/pkg/platform/privacy"
	"admissions/pkg/requestcontext"
)

// ResourceAuditLogs names the built-in eraser for the audit trail.
const ResourceAuditLogs = "audit_logs"

// AuditTrail is the slice of the audit logger the service uses.
type AuditTrail interface {
	LogSync(ctx context.Context, entry audit.Entry)
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
	AnonymizeUser(ctx context.Context, userID string) (int, error)
}

// Eraser deletes or anonymizes one kind of user data and reports how many
// records it touched.
type Eraser interface {
	Resource() string
	Erase(ctx context.Context, userID string) (int, error)
}

// EraserFunc adapts a function to Eraser.
type EraserFunc struct {
	Name string
	Fn   func(ctx context.Context, userID string) (int, error)
}

func (f EraserFunc) Resource() string { return f.Name }

func (f EraserFunc) Erase(ctx context.Context, userID string) (int, error) {
	return f.Fn(ctx, userID)
}

// Export is the machine-readable copy of a user's data.
type Export struct {
	UserID      string        `json:"userId"`
	GeneratedAt time.Time     `json:"generatedAt"`
	AuditLogs   []audit.Entry `json:"auditLogs"`
}

// ResourceResult is the outcome of one eraser.
type ResourceResult struct {
	Resource string `json:"resource"`
	Affected int    `json:"affected"`
	Error    string `json:"error,omitempty"`
}

// Report lists every eraser's outcome in execution order.
type Report struct {
	UserID    string           `json:"userId"`
	Resources []ResourceResult `json:"resources"`
}

// Failed reports whether any eraser failed.
func (r Report) Failed() bool {
	for _, res := range r.Resources {
		if res.Error != "" {
			return true
		}
	}
	return false
}

type Service struct {
	audit   AuditTrail
	erasers []Eraser
	logger  *slog.Logger
}

type Option func(*Service)

// WithEraser registers an eraser. Erasers run in registration order; the
// audit trail is always anonymized last.
func WithEraser(e Eraser) Option {
	return func(s *Service) {
		s.erasers = append(s.erasers, e)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(trail AuditTrail, opts ...Option) *Service {
	s := &Service{audit: trail, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export returns the user's audit entries, newest first.
func (s *Service) Export(ctx context.Context, userID string) (*Export, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	entries, err := s.audit.Query(ctx, audit.Filter{UserID: userID, Limit: audit.MaxQueryLimit})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to export user data")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	s.audit.LogSync(ctx, audit.Entry{
		Action:  audit.ActionGDPRExportRequest,
		UserID:  userID,
		Details: map[string]any{"auditLogs": len(entries)},
	})

	return &Export{
		UserID:      userID,
		GeneratedAt: requestcontext.Now(ctx).UTC(),
		AuditLogs:   entries,
	}, nil
}

// Delete runs every eraser independently. A failing eraser does not stop
// the others and completed steps are never rolled back. The returned error
// joins every eraser failure.
func (s *Service) Delete(ctx context.Context, userID string) (Report, error) {
	if userID == "" {
		return Report{}, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	s.audit.LogSync(ctx, audit.Entry{
		Action:   audit.ActionGDPRDeletionRequest,
		Severity: audit.SeverityWarning,
		UserID:   userID,
	})

	erasers := append(append([]Eraser(nil), s.erasers...), EraserFunc{
		Name: ResourceAuditLogs,
		Fn:   s.audit.AnonymizeUser,
	})

	pseudonym := privacy.AnonymizeUserID(userID)
	report := Report{UserID: pseudonym}
	var errs []error
	for _, e := range erasers {
		n, err := e.Erase(ctx, userID)
		res := ResourceResult{Resource: e.Resource(), Affected: n}
		if err != nil {
			res.Error = err.Error()
			errs = append(errs, fmt.Errorf("erase %s: %w", e.Resource(), err))
			s.logger.ErrorContext(ctx, "gdpr erasure step failed",
				"resource", e.Resource(),
				"user_pseudonym", pseudonym,
				"error", err,
			)
		}
		report.Resources = append(report.Resources, res)
	}

	// The completion entry must not re-identify the user, so it is logged
	// without the actor and client metadata the logger would otherwise copy
	// from ctx.
	anonCtx := requestcontext.WithClientMetadata(requestcontext.WithActor(ctx, requestcontext.Actor{}), "", "")
	completed := audit.Entry{
		Action:    audit.ActionGDPRDeletionCompleted,
		UserID:    pseudonym,
		UserEmail: privacy.AnonymizedEmail,
		Details:   map[string]any{"resources": report.Resources},
	}
	if err := errors.Join(errs...); err != nil {
		completed.Severity = audit.SeverityError
		completed.Success = audit.Bool(false)
		completed.ErrorMessage = err.Error()
		s.audit.LogSync(anonCtx, completed)
		return report, dErrors.Wrap(err, dErrors.CodeInternal, "user data deletion incomplete")
	}
	s.audit.LogSync(anonCtx, completed)
	return report, nil
}
