// Package device summarizes User-Agent strings for security audit details.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Summary is the coarse device description attached to security events.
type Summary struct {
	Display string `json:"device"`
	Mobile  bool   `json:"mobile"`
	Bot     bool   `json:"bot"`
}

// Describe parses a User-Agent into a Summary. Display has the form
// "Browser on OS" (e.g. "Chrome on macOS", "Safari on iPhone").
func Describe(userAgentString string) Summary {
	if strings.TrimSpace(userAgentString) == "" {
		return Summary{Display: "Unknown Device"}
	}

	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() && ua.Platform() != "" {
		os = ua.Platform()
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}

	return Summary{
		Display: strings.TrimSpace(browser + " on " + os),
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot(),
	}
}
