package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Security guards the admin and callback actions with shared secrets taken
// from either a dedicated header or a bearer Authorization header.
type Security struct {
	adminKey       string
	callbackSecret string
}

// NewSecurity constructs the Security checks. An empty admin key disables
// admin actions entirely; an empty callback secret leaves the callback open
// (the provider deployment may not sign its callbacks).
func NewSecurity(adminKey, callbackSecret string) *Security {
	return &Security{adminKey: adminKey, callbackSecret: callbackSecret}
}

// RequireAdmin reports whether the request carries the admin key. Constant
// time comparison guards against timing side-channels on the shared secret.
func (s *Security) RequireAdmin(r *http.Request) bool {
	if s.adminKey == "" {
		return false
	}
	got := credentialFrom(r, "X-Admin-Key")
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.adminKey)) == 1
}

// AllowCallback reports whether the request may deliver a status callback.
func (s *Security) AllowCallback(r *http.Request) bool {
	if s.callbackSecret == "" {
		return true
	}
	got := credentialFrom(r, "X-Callback-Secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.callbackSecret)) == 1
}

// credentialFrom reads a secret from the named header, falling back to a
// bearer Authorization header.
func credentialFrom(r *http.Request, header string) string {
	if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
		return v
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) >= 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
