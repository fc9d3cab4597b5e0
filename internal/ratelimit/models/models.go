package models

import (
	"math"
	"time"

	dErrors "admissions/pkg/domain-errors"
)

// Profile names a pre-configured limiter for one class of endpoints.
type Profile string

const (
	// ProfileAuth: login, registration, password reset (5 per 15 min).
	ProfileAuth Profile = "auth"
	// ProfileAPI: authenticated API reads and writes (100 per min).
	ProfileAPI Profile = "api"
	// ProfileUpload: document uploads (10 per hour).
	ProfileUpload Profile = "upload"
	// ProfileEmail: endpoints that send email (20 per hour).
	ProfileEmail Profile = "email"
	// ProfileGeneral: everything else (1000 per min).
	ProfileGeneral Profile = "general"
)

// Profiles lists every profile in a stable order.
var Profiles = []Profile{ProfileAuth, ProfileAPI, ProfileUpload, ProfileEmail, ProfileGeneral}

func (p Profile) IsValid() bool {
	switch p {
	case ProfileAuth, ProfileAPI, ProfileUpload, ProfileEmail, ProfileGeneral:
		return true
	}
	return false
}

func (p Profile) String() string {
	return string(p)
}

// ParseProfile validates a profile name.
func ParseProfile(s string) (Profile, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "profile cannot be empty")
	}
	p := Profile(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown rate limit profile: "+s)
	}
	return p, nil
}

// Limit is the construction input of a limiter: at most MaxRequests per Window.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

// Validate rejects limits that would never allow a request.
func (l Limit) Validate() error {
	if l.MaxRequests <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max requests must be positive")
	}
	if l.Window <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "window must be positive")
	}
	return nil
}

// Record is the fixed-window counter state for one key.
type Record struct {
	Count   int
	ResetAt time.Time
}

// Expired reports whether the window has ended. A window is still live at
// exactly ResetAt.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ResetAt)
}

// Result is the outcome of a limiter check. Rejection is a value, not an error.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Allow builds an accepting result for a window that has used count requests.
func Allow(limit Limit, count int, resetAt time.Time) Result {
	return Result{
		Allowed:   true,
		Limit:     limit.MaxRequests,
		Remaining: max(limit.MaxRequests-count, 0),
		ResetAt:   resetAt,
	}
}

// Reject builds a rejecting result with RetryAfter rounded up to whole seconds.
func Reject(limit Limit, resetAt, now time.Time) Result {
	return Result{
		Allowed:    false,
		Limit:      limit.MaxRequests,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: RetryAfterSeconds(resetAt, now),
	}
}

// RetryAfterSeconds is ceil((resetAt-now)/1s), never below 1.
func RetryAfterSeconds(resetAt, now time.Time) int {
	seconds := int(math.Ceil(resetAt.Sub(now).Seconds()))
	return max(seconds, 1)
}
