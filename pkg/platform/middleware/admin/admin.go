package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"admissions/pkg/requestcontext"
)

// RoleAdmin is the JWT role that grants access to admin routes.
const RoleAdmin = "admin"

// RequireAdmin admits requests that either carry the operator token in
// X-Admin-Token or were authenticated with the admin role. An empty
// expectedToken disables the token path.
//
// Operator requests are attributed to X-Admin-Actor-ID so audit entries
// written downstream name the operator.
func RequireAdmin(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if requestcontext.GetActor(ctx).Role == RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin access denied",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin access required"}`))
				return
			}

			actor := requestcontext.Actor{UserID: r.Header.Get("X-Admin-Actor-ID"), Role: RoleAdmin}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}
