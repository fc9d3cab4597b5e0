package models

import (
	"strings"

	dErrors "admissions/pkg/domain-errors"
)

// ResetRateLimitRequest clears the window of one client. An empty Profile
// resets every profile for that client.
type ResetRateLimitRequest struct {
	Identifier string `json:"identifier"`
	Profile    string `json:"profile,omitempty"`
}

func (r *ResetRateLimitRequest) Normalize() {
	if r == nil {
		return
	}
	r.Identifier = strings.TrimSpace(r.Identifier)
	r.Profile = strings.TrimSpace(strings.ToLower(r.Profile))
}

// Follows validation order: Size -> Required -> Syntax.
func (r *ResetRateLimitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	if len(r.Identifier) > 255 {
		return dErrors.New(dErrors.CodeValidation, "identifier must be 255 characters or less")
	}

	if r.Identifier == "" {
		return dErrors.New(dErrors.CodeValidation, "identifier is required")
	}

	if r.Profile != "" && !Profile(r.Profile).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "profile must be one of auth, api, upload, email, general")
	}
	return nil
}

// Profiles returns the profiles the request targets.
func (r *ResetRateLimitRequest) Profiles() []Profile {
	if r.Profile == "" {
		return Profiles
	}
	return []Profile{Profile(r.Profile)}
}

// ResetRateLimitResponse reports which windows were cleared.
type ResetRateLimitResponse struct {
	Identifier string    `json:"identifier"`
	Profiles   []Profile `json:"profiles"`
}
