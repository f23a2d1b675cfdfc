package router

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"example.com/microhttpd/internal/handlers/staticfile"
)

// Authorizer decides whether a resolved path may be served. credential is
// the raw Authorization header value, empty when the request carried none.
type Authorizer interface {
	Authorize(pi *staticfile.ResolvedPath, credential string) bool
	// Challenge returns the WWW-Authenticate value sent on denial.
	Challenge() string
}

// BasicAuthorizer implements HTTP Basic authentication against an in-memory
// user table. An empty table denies everything.
type BasicAuthorizer struct {
	Realm string
	Users map[string]string
}

// Authorize accepts credentials of the form "Basic <base64(user:pass)>"
// matching an entry of the user table. Comparison is constant-time so a
// probe cannot distinguish a wrong password from a wrong username.
func (a *BasicAuthorizer) Authorize(_ *staticfile.ResolvedPath, credential string) bool {
	const prefix = "Basic "
	if len(credential) <= len(prefix) || !strings.EqualFold(credential[:len(prefix)], prefix) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(credential[len(prefix):])
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	want, found := a.Users[user]
	if !found {
		// Burn a comparison anyway to keep timing uniform.
		subtle.ConstantTimeCompare([]byte(pass), []byte(pass))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(want)) == 1
}

// Challenge returns the Basic scheme challenge for the configured realm.
func (a *BasicAuthorizer) Challenge() string {
	realm := a.Realm
	if realm == "" {
		realm = "Protected"
	}
	return `Basic realm="` + realm + `"`
}
