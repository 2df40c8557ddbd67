package auth

import (
	"net/http"
	"path"
	"strings"
)

// DefaultPublicPaths never require a token: the service description at "/",
// probes, documentation, metrics and the endpoints that hand out tokens.
var DefaultPublicPaths = []string{
	"/",
	"/health",
	"/readiness",
	"/version",
	"/openapi.yaml",
	"/openapi.json",
	"/metrics",
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/guest",
	"/api/auth/logout",
}

// IsPublicPath reports whether requestPath is covered by publicPaths.
//
// Paths are cleaned before matching and anything containing an encoded "/" or "."
// is rejected outright, so /health/../entities does not slip through. Matching is
// per segment: /health covers /health/live but not /healthz. "/" covers only the root.
func IsPublicPath(requestPath string, publicPaths []string) bool {
	lower := strings.ToLower(requestPath)
	if strings.Contains(lower, "%2f") || strings.Contains(lower, "%2e") {
		return false
	}

	clean := cleanPath(requestPath)
	for _, p := range publicPaths {
		public := cleanPath(p)
		if clean == public {
			return true
		}
		if public != "/" && strings.HasPrefix(clean, public+"/") {
			return true
		}
	}
	return false
}

func cleanPath(p string) string {
	return path.Clean("/" + p)
}

// WrapWithPublicPaths applies authMw to every request except those to public paths.
func WrapWithPublicPaths(authMw func(http.Handler) http.Handler, publicPaths []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := authMw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path, publicPaths) {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}
