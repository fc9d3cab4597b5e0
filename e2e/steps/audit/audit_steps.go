package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cucumber/godog"
)

// Entries are persisted asynchronously; assertions poll up to this long.
const settleTimeout = 2 * time.Second

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any, headers map[string]string) error
	AdminHeaders() map[string]string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers audit and GDPR step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &auditSteps{tc: tc}

	ctx.Step(`^the audit log should contain (\d+) "([^"]*)" entr(?:y|ies)$`, steps.auditLogShouldContain)
	ctx.Step(`^the latest "([^"]*)" entry should have severity "([^"]*)"$`, steps.latestEntryShouldHaveSeverity)
	ctx.Step(`^the audit log should contain no entries for user "([^"]*)"$`, steps.noEntriesForUser)
	ctx.Step(`^I request my data export$`, steps.requestExport)
	ctx.Step(`^I request erasure of my data$`, steps.requestErasure)
}

type auditSteps struct {
	tc TestContext
}

type entry struct {
	Action   string `json:"action"`
	Severity string `json:"severity"`
	UserID   string `json:"userId"`
}

func (s *auditSteps) query(params url.Values) ([]entry, error) {
	if err := s.tc.Do(http.MethodGet, "/admin/audit-logs?"+params.Encode(), nil, s.tc.AdminHeaders()); err != nil {
		return nil, err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return nil, fmt.Errorf("audit query returned %d", status)
	}
	var out struct {
		Entries []entry `json:"entries"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse audit response: %w", err)
	}
	return out.Entries, nil
}

func (s *auditSteps) auditLogShouldContain(_ context.Context, n int, action string) error {
	deadline := time.Now().Add(settleTimeout)
	for {
		entries, err := s.query(url.Values{"action": {action}})
		if err != nil {
			return err
		}
		if len(entries) == n {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("expected %d %s entries, found %d", n, action, len(entries))
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (s *auditSteps) latestEntryShouldHaveSeverity(_ context.Context, action, severity string) error {
	entries, err := s.query(url.Values{"action": {action}, "limit": {"1"}})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no %s entries", action)
	}
	if entries[0].Severity != severity {
		return fmt.Errorf("latest %s entry has severity %q, expected %q", action, entries[0].Severity, severity)
	}
	return nil
}

func (s *auditSteps) noEntriesForUser(_ context.Context, userID string) error {
	entries, err := s.query(url.Values{"userId": {userID}})
	if err != nil {
		return err
	}
	if len(entries) != 0 {
		return fmt.Errorf("expected no entries for %s, found %d", userID, len(entries))
	}
	return nil
}

func (s *auditSteps) requestExport(context.Context) error {
	return s.tc.Do(http.MethodGet, "/me/data-export", nil, nil)
}

func (s *auditSteps) requestErasure(context.Context) error {
	return s.tc.Do(http.MethodDelete, "/me/data", nil, nil)
}
