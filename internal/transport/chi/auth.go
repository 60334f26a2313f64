package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/docflat/internal/logger"
)

// openPaths never require a key.
var openPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// AuthOptions configures API key checks on /dataimport.
type AuthOptions struct {
	// APIKeys accepted as Bearer tokens. Empty disables authentication.
	APIKeys []string
	// PublicStatus lets status requests through without a key.
	PublicStatus bool
}

type authenticator struct {
	keys         [][]byte
	publicStatus bool
}

// BearerAuthMiddleware rejects /dataimport requests without a valid
// "Authorization: Bearer <key>" header.
func BearerAuthMiddleware(opts AuthOptions) func(http.Handler) http.Handler {
	a := &authenticator{publicStatus: opts.PublicStatus}
	for _, k := range opts.APIKeys {
		if k != "" {
			a.keys = append(a.keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(a.keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			if reason := a.reject(r.Header.Get("Authorization")); reason != "" {
				logpkg.FromContext(r.Context()).Warn("Request rejected",
					zap.String("path", r.URL.Path),
					zap.String(logpkg.KeyCommand, r.URL.Query().Get("command")),
					zap.String("reason", reason),
				)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *authenticator) skip(r *http.Request) bool {
	if _, ok := openPaths[r.URL.Path]; ok {
		return true
	}
	if !a.publicStatus || r.URL.Path != "/dataimport" {
		return false
	}
	cmd := r.URL.Query().Get("command")
	return cmd == "" || cmd == "status"
}

// reject returns why header fails authentication, or "" when it passes.
func (a *authenticator) reject(header string) string {
	if header == "" {
		return "missing authorization header"
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "authorization header must use Bearer scheme"
	}
	if !a.valid(strings.TrimSpace(token)) {
		return "invalid api key"
	}
	return ""
}

// valid compares token against every key so timing does not reveal which
// key, if any, matched.
func (a *authenticator) valid(token string) bool {
	match := 0
	for _, k := range a.keys {
		match |= subtle.ConstantTimeCompare(k, []byte(token))
	}
	return match == 1
}
