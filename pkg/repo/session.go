package repo

// Session is the identity boundary: an authenticated session is bound to
// exactly one tenant DID. The zero Session is unauthenticated.
type Session struct {
	// DID is the tenant identifier the session is bound to.
	DID string
	// AccessToken is sent as a bearer token on every call.
	AccessToken string
}

// Authenticated reports whether the session carries a usable identity.
func (s Session) Authenticated() bool {
	return s.DID != "" && s.AccessToken != ""
}

// Tenant returns the tenant DID, or "" when unauthenticated.
func (s Session) Tenant() string {
	if !s.Authenticated() {
		return ""
	}
	return s.DID
}
