package e2e

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"

	"admissions/e2e/steps/audit"
	"admissions/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Step(`^the admissions API is running$`, tc.apiIsRunning)
	ctx.Step(`^I am making requests from IP "([^"]*)"$`, tc.makingRequestsFromIP)
	ctx.Step(`^I log in with the admin credentials$`, tc.logInAsAdmin)
	ctx.Step(`^I GET "([^"]*)"$`, tc.get)

	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.responseShouldContain)
	ctx.Step(`^the response header "([^"]*)" should equal "([^"]*)"$`, tc.responseHeaderShouldEqual)
	ctx.Step(`^the response header "([^"]*)" should be present$`, tc.responseHeaderShouldBePresent)

	ratelimit.RegisterSteps(ctx, tc)
	audit.RegisterSteps(ctx, tc)
}

func (tc *TestContext) apiIsRunning(ctx context.Context) error {
	if err := tc.Do(http.MethodGet, "/health/live", nil, nil); err != nil {
		return err
	}
	return tc.responseStatusShouldBe(ctx, http.StatusOK)
}

func (tc *TestContext) makingRequestsFromIP(_ context.Context, ip string) error {
	tc.SetClientIP(ip)
	return nil
}

func (tc *TestContext) logInAsAdmin(context.Context) error {
	status, err := tc.Login(AdminPassword)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login returned %d: %s", status, string(tc.LastResponseBody))
	}
	token, err := tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s, ok := token.(string)
	if !ok {
		return fmt.Errorf("access_token is %T, not a string", token)
	}
	tc.SetAccessToken(s)
	return nil
}

func (tc *TestContext) get(_ context.Context, path string) error {
	return tc.Do(http.MethodGet, path, nil, nil)
}

func (tc *TestContext) responseStatusShouldBe(_ context.Context, expected int) error {
	if actual := tc.GetLastResponseStatus(); actual != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, actual, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseShouldContain(_ context.Context, text string) error {
	if !strings.Contains(string(tc.LastResponseBody), text) {
		return fmt.Errorf("response does not contain %q: %s", text, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseHeaderShouldEqual(_ context.Context, name, expected string) error {
	if actual := tc.GetLastResponseHeader(name); actual != expected {
		return fmt.Errorf("expected header %s=%q, got %q", name, expected, actual)
	}
	return nil
}

func (tc *TestContext) responseHeaderShouldBePresent(_ context.Context, name string) error {
	if tc.GetLastResponseHeader(name) == "" {
		return fmt.Errorf("header %s is missing", name)
	}
	return nil
}
