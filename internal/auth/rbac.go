package auth

import "net/http"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// RequireRole rejects authenticated callers whose role is not one of roles.
// API keys carry the admin role.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := PrincipalFromContext(req.Context())
			if p == nil {
				writeError(w, http.StatusForbidden, "no principal in context")
				return
			}
			if !allowed[p.Role] {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
