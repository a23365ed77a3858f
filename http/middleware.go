package http

import (
	"crypto/subtle"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sagarc03/repostore"
)

// AuthMiddleware requires "Authorization: Bearer <token>". An empty token
// disables the check.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	if token == "" {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	want := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				HandleError(w, ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RepositoryMiddleware rejects requests without a "uri" query parameter.
func RepositoryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("uri") == "" {
			WriteError(w, http.StatusBadRequest, "invalid_request", "uri is required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// FileRootMiddleware rejects file:// repositories outside roots with 403.
// With no roots every file:// repository is rejected. URIs that do not parse
// are left to the handlers.
func FileRootMiddleware(roots []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			allowed = append(allowed, abs)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, err := repostore.Parse(r.URL.Query().Get("uri"))
			if err == nil && addr.Scheme == repostore.SchemeFile && !withinRoots(allowed, addr.Root) {
				WriteError(w, http.StatusForbidden, "forbidden_root", "file root is not served by this gateway")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func withinRoots(roots []string, dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	for _, root := range roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}
