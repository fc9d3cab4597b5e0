// Package audit records security and compliance events for the admissions
// platform. Writes are best-effort: a failing store never fails the request
// that triggered the event.
package audit

import (
	"time"

	dErrors "admissions/pkg/domain-errors"
)

// CollectionName is the table audit entries are written to. The migrations
// create it under this name.
const CollectionName = "audit_logs"

// Action is the closed set of auditable events.
type Action string

const (
	ActionUserLogin               Action = "USER_LOGIN"
	ActionUserLogout              Action = "USER_LOGOUT"
	ActionUserRegister            Action = "USER_REGISTER"
	ActionLoginFailed             Action = "LOGIN_FAILED"
	ActionPasswordReset           Action = "PASSWORD_RESET"
	ActionRoleChange              Action = "ROLE_CHANGE"
	ActionApplicationCreate       Action = "APPLICATION_CREATE"
	ActionApplicationUpdate       Action = "APPLICATION_UPDATE"
	ActionApplicationDelete       Action = "APPLICATION_DELETE"
	ActionApplicationSubmit       Action = "APPLICATION_SUBMIT"
	ActionApplicationStatusChange Action = "APPLICATION_STATUS_CHANGE"
	ActionDocumentUpload          Action = "DOCUMENT_UPLOAD"
	ActionDocumentDelete          Action = "DOCUMENT_DELETE"
	ActionDocumentVerify          Action = "DOCUMENT_VERIFY"
	ActionPaymentInitiated        Action = "PAYMENT_INITIATED"
	ActionPaymentCompleted        Action = "PAYMENT_COMPLETED"
	ActionPaymentFailed           Action = "PAYMENT_FAILED"
	ActionEmailSent               Action = "EMAIL_SENT"
	ActionEmailFailed             Action = "EMAIL_FAILED"
	ActionGDPRExportRequest       Action = "GDPR_EXPORT_REQUEST"
	ActionGDPRDeletionRequest     Action = "GDPR_DELETION_REQUEST"
	ActionGDPRDeletionCompleted   Action = "GDPR_DELETION_COMPLETED"
	ActionRateLimitExceeded       Action = "RATE_LIMIT_EXCEEDED"
	ActionUnauthorizedAccess      Action = "UNAUTHORIZED_ACCESS"
	ActionSuspiciousActivity      Action = "SUSPICIOUS_ACTIVITY"
	ActionAdminAction             Action = "ADMIN_ACTION"
)

var validActions = map[Action]struct{}{
	ActionUserLogin: {}, ActionUserLogout: {}, ActionUserRegister: {}, ActionLoginFailed: {},
	ActionPasswordReset: {}, ActionRoleChange: {},
	ActionApplicationCreate: {}, ActionApplicationUpdate: {}, ActionApplicationDelete: {},
	ActionApplicationSubmit: {}, ActionApplicationStatusChange: {},
	ActionDocumentUpload: {}, ActionDocumentDelete: {}, ActionDocumentVerify: {},
	ActionPaymentInitiated: {}, ActionPaymentCompleted: {}, ActionPaymentFailed: {},
	ActionEmailSent: {}, ActionEmailFailed: {},
	ActionGDPRExportRequest: {}, ActionGDPRDeletionRequest: {}, ActionGDPRDeletionCompleted: {},
	ActionRateLimitExceeded: {}, ActionUnauthorizedAccess: {}, ActionSuspiciousActivity: {},
	ActionAdminAction: {},
}

func (a Action) IsValid() bool {
	_, ok := validActions[a]
	return ok
}

func (a Action) String() string {
	return string(a)
}

// ParseAction validates a wire value.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown audit action: "+s)
	}
	return a, nil
}

// Severity grades an entry. Critical entries are also sent to the alert sink.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Entry is one immutable audit record. Timestamp is epoch milliseconds.
// Success is a pointer only so callers can leave it unset and get the
// default of true; stored entries always carry it.
type Entry struct {
	ID           string         `json:"id"`
	Timestamp    int64          `json:"timestamp"`
	Action       Action         `json:"action"`
	Severity     Severity       `json:"severity"`
	UserID       string         `json:"userId,omitempty"`
	UserEmail    string         `json:"userEmail,omitempty"`
	UserRole     string         `json:"userRole,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	ResourceType string         `json:"resourceType,omitempty"`
	ResourceID   string         `json:"resourceId,omitempty"`
	RequestID    string         `json:"requestId,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Success      *bool          `json:"success"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// Succeeded reports the entry's outcome, treating unset as success.
func (e Entry) Succeeded() bool {
	return e.Success == nil || *e.Success
}

// Time converts the epoch-millisecond timestamp.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Bool returns a pointer for Entry.Success.
func Bool(v bool) *bool {
	return &v
}

// Filter selects entries for Query. Zero fields do not filter. Results are
// ordered newest first.
type Filter struct {
	UserID string
	Action Action
	From   time.Time
	To     time.Time
	Limit  int
}

// Matches applies the filter to one entry. Stores that cannot push a
// predicate down use it to filter in memory.
func (f Filter) Matches(e Entry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.From.IsZero() && e.Timestamp < f.From.UnixMilli() {
		return false
	}
	if !f.To.IsZero() && e.Timestamp > f.To.UnixMilli() {
		return false
	}
	return true
}
