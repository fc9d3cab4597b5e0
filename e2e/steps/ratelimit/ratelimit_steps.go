package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any, headers map[string]string) error
	Login(password string) (int, error)
	AdminHeaders() map[string]string
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I attempt login with password "([^"]*)" (\d+) times$`, steps.attemptLoginNTimes)
	ctx.Step(`^I attempt login with password "([^"]*)"$`, steps.attemptLogin)
	ctx.Step(`^all (\d+) attempts should return (\d+)$`, steps.allAttemptsShouldReturn)
	ctx.Step(`^the remaining count should fall from (\d+) to (\d+)$`, steps.remainingShouldFall)
	ctx.Step(`^an operator resets the "([^"]*)" limit for IP "([^"]*)"$`, steps.operatorResets)
}

type ratelimitSteps struct {
	tc        TestContext
	statuses  []int
	remaining []string
}

func (s *ratelimitSteps) attemptLoginNTimes(_ context.Context, password string, n int) error {
	s.statuses = s.statuses[:0]
	s.remaining = s.remaining[:0]
	for range n {
		status, err := s.tc.Login(password)
		if err != nil {
			return err
		}
		s.statuses = append(s.statuses, status)
		s.remaining = append(s.remaining, s.tc.GetLastResponseHeader("X-RateLimit-Remaining"))
	}
	return nil
}

func (s *ratelimitSteps) attemptLogin(_ context.Context, password string) error {
	_, err := s.tc.Login(password)
	return err
}

func (s *ratelimitSteps) allAttemptsShouldReturn(_ context.Context, n, expected int) error {
	if len(s.statuses) != n {
		return fmt.Errorf("expected %d attempts, recorded %d", n, len(s.statuses))
	}
	for i, status := range s.statuses {
		if status != expected {
			return fmt.Errorf("attempt %d returned %d, expected %d", i+1, status, expected)
		}
	}
	return nil
}

func (s *ratelimitSteps) remainingShouldFall(_ context.Context, from, to int) error {
	if len(s.remaining) == 0 {
		return fmt.Errorf("no attempts recorded")
	}
	first, last := s.remaining[0], s.remaining[len(s.remaining)-1]
	if first != fmt.Sprint(from) || last != fmt.Sprint(to) {
		return fmt.Errorf("remaining went from %s to %s, expected %d to %d", first, last, from, to)
	}
	return nil
}

func (s *ratelimitSteps) operatorResets(_ context.Context, profile, ip string) error {
	body := map[string]string{"identifier": ip, "profile": profile}
	if err := s.tc.Do(http.MethodDelete, "/admin/ratelimit", body, s.tc.AdminHeaders()); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return fmt.Errorf("reset returned %d", status)
	}
	return nil
}
