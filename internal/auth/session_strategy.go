package auth

// SessionStrategy authenticates against an established server-side
// session: the session mapping must carry a user reference under the
// configured key.
type SessionStrategy struct {
	userKey string
}

// NewSessionStrategy creates a session strategy. userKey defaults to
// "user_id".
func NewSessionStrategy(userKey string) *SessionStrategy {
	if userKey == "" {
		userKey = "user_id"
	}
	return &SessionStrategy{userKey: userKey}
}

// Authenticate succeeds when the request's session holds a user reference.
func (s *SessionStrategy) Authenticate(ctx *Context, _ Requirement) *Result {
	if ctx.SessionID == "" {
		return Failure("session", "no session cookie")
	}
	sess := ctx.Session()
	user, ok := sess[s.userKey]
	if !ok || user == nil || user == "" {
		return Failure("session", "session has no user")
	}
	return Authenticated(user, sess, "session", nil)
}
