package metadata

import (
	"net/http"
	"strings"

	"admissions/pkg/requestcontext"
)

// UnknownClient is the identifier used when no forwarding header is present.
const UnknownClient = "unknown"

// MaxHeaderLength bounds forwarding headers; longer values are ignored to
// keep attacker-controlled input out of rate-limit keys and logs.
const MaxHeaderLength = 500

// identifierHeaders are consulted in priority order.
var identifierHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
}

// Handler resolves the client identifier and User-Agent and stores them in
// the request context for the rate limiter and the audit logger.
func Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIdentifier(r.Header), r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIdentifier derives the rate-limit partition key from request headers:
// the first X-Forwarded-For entry, then X-Real-IP, then CF-Connecting-IP,
// then "unknown". The value is not a verified identity; clients behind one
// NAT or proxy share it.
func ClientIdentifier(h http.Header) string {
	for _, name := range identifierHeaders {
		v := h.Get(name)
		if v == "" || len(v) > MaxHeaderLength {
			continue
		}
		if name == "X-Forwarded-For" {
			v, _, _ = strings.Cut(v, ",")
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return UnknownClient
}
