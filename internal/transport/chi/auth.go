package chi

import (
	"net/http"
	"strings"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

const bearerPrefix = "Bearer "

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// bearerToken extracts the token or writes a 401 and returns false.
func bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "missing authorization header")
		return "", false
	}
	if !strings.HasPrefix(auth, bearerPrefix) {
		writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "authorization header must use Bearer scheme")
		return "", false
	}
	return auth[len(bearerPrefix):], true
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens.
// If apiKeys is empty, authentication is disabled (pass-through).
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := keySet(apiKeys)

	return func(next http.Handler) http.Handler {
		// Auth disabled, pass everything through
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(w, r)
			if !ok {
				return
			}
			if _, ok := validKeys[token]; !ok {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuthMiddleware restricts a route group to admin keys.
// If adminKeys is empty, the group is open to any caller BearerAuthMiddleware admitted.
func AdminAuthMiddleware(adminKeys []string) func(http.Handler) http.Handler {
	validKeys := keySet(adminKeys)

	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(w, r)
			if !ok {
				return
			}
			if _, ok := validKeys[token]; !ok {
				writeError(w, http.StatusForbidden, ErrorCodeForbidden, "admin api key required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
