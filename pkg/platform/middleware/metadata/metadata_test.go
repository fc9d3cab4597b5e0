package metadata

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"admissions/pkg/requestcontext"
)

func TestClientIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected string
	}{
		{
			name:     "first value of X-Forwarded-For",
			headers:  map[string]string{"X-Forwarded-For": "203.0.113.1, 198.51.100.1", "X-Real-IP": "10.0.0.1"},
			expected: "203.0.113.1",
		},
		{
			name:     "X-Real-IP when no X-Forwarded-For",
			headers:  map[string]string{"X-Real-IP": "198.51.100.7", "CF-Connecting-IP": "10.0.0.2"},
			expected: "198.51.100.7",
		},
		{
			name:     "CF-Connecting-IP as last header",
			headers:  map[string]string{"CF-Connecting-IP": "192.0.2.44"},
			expected: "192.0.2.44",
		},
		{
			name:     "unknown without any header",
			headers:  map[string]string{},
			expected: "unknown",
		},
		{
			name:     "blank first XFF entry falls through",
			headers:  map[string]string{"X-Forwarded-For": " , 1.1.1.1", "X-Real-IP": "2.2.2.2"},
			expected: "2.2.2.2",
		},
		{
			name:     "oversized header is ignored",
			headers:  map[string]string{"X-Forwarded-For": strings.Repeat("1", MaxHeaderLength+1), "CF-Connecting-IP": "3.3.3.3"},
			expected: "3.3.3.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.expected, ClientIdentifier(h))
		})
	}
}

func TestHandler_StoresMetadataInContext(t *testing.T) {
	var ip, ua string
	handler := Handler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "1.2.3.4", ip)
	assert.Equal(t, "Mozilla/5.0", ua)
}
