package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ipv4 standard address", "192.168.1.47", "192.168.1.0"},
		{"ipv4 already masked", "10.0.0.0", "10.0.0.0"},
		{"ipv4 localhost", "127.0.0.1", "127.0.0.0"},
		{"ipv4 mapped ipv6", "::ffff:203.0.113.9", "203.0.113.0"},
		{"ipv6 full address", "2001:db8:85a3:0000:0000:8a2e:0370:7334", "2001:db8:85a3::"},
		{"ipv6 loopback", "::1", "::"},
		{"surrounding whitespace", " 1.2.3.4 ", "1.2.3.0"},
		{"empty", "", "unknown"},
		{"unknown sentinel", "unknown", "unknown"},
		{"garbage", "not-an-ip", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnonymizeIP(tt.input))
		})
	}
}

func TestAnonymizeUserID(t *testing.T) {
	a := AnonymizeUserID("student-42")
	b := AnonymizeUserID("student-42")
	c := AnonymizeUserID("student-43")

	assert.Equal(t, a, b, "pseudonym is stable")
	assert.NotEqual(t, a, c)
	assert.NotContains(t, a, "student-42")
	assert.Len(t, a, len("anon_")+16)
	assert.Empty(t, AnonymizeUserID(""))
}
