package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		assertion func(t *testing.T, s Summary)
	}{
		{
			name:      "empty user agent",
			userAgent: "",
			assertion: func(t *testing.T, s Summary) {
				assert.Equal(t, "Unknown Device", s.Display)
				assert.False(t, s.Mobile)
			},
		},
		{
			name:      "chrome on desktop",
			userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			assertion: func(t *testing.T, s Summary) {
				assert.Contains(t, s.Display, "Chrome on ")
				assert.False(t, s.Mobile)
			},
		},
		{
			name:      "safari on iphone",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			assertion: func(t *testing.T, s Summary) {
				assert.Contains(t, s.Display, "iPhone")
				assert.True(t, s.Mobile)
			},
		},
		{
			name:      "crawler is flagged as bot",
			userAgent: "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			assertion: func(t *testing.T, s Summary) {
				assert.True(t, s.Bot)
			},
		},
		{
			name:      "unrecognised agent still formatted",
			userAgent: "curl/8.4.0",
			assertion: func(t *testing.T, s Summary) {
				assert.Contains(t, s.Display, " on ")
				assert.Equal(t, s.Display, strings.TrimSpace(s.Display))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion(t, Describe(tt.userAgent))
		})
	}
}
