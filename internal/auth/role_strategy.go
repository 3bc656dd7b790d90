package auth

// RoleStrategy authenticates a "role:<name>" requirement against the
// roles recorded in an established session. It is typically registered
// under "role", or under "role:*" as a wildcard fallback.
type RoleStrategy struct {
	rolesKey string
	userKey  string
}

// NewRoleStrategy creates a role strategy. rolesKey defaults to "roles",
// userKey to "user_id".
func NewRoleStrategy(rolesKey, userKey string) *RoleStrategy {
	if rolesKey == "" {
		rolesKey = "roles"
	}
	if userKey == "" {
		userKey = "user_id"
	}
	return &RoleStrategy{rolesKey: rolesKey, userKey: userKey}
}

// Authenticate succeeds when the session's role list contains the
// requirement argument.
func (s *RoleStrategy) Authenticate(ctx *Context, req Requirement) *Result {
	if req.Argument == "" {
		return Failure("role", "requirement has no role argument")
	}
	if ctx.SessionID == "" {
		return Failure("role", "no session cookie")
	}

	sess := ctx.Session()
	if !hasRole(sess[s.rolesKey], req.Argument) {
		return Failure("role", "session lacks role "+req.Argument)
	}

	return Authenticated(sess[s.userKey], sess, "role", map[string]interface{}{
		"role": req.Argument,
	})
}

// hasRole checks a session roles value, tolerating the []interface{}
// shape JSON decoding produces.
func hasRole(v interface{}, want string) bool {
	switch roles := v.(type) {
	case []string:
		for _, r := range roles {
			if r == want {
				return true
			}
		}
	case []interface{}:
		for _, r := range roles {
			if s, ok := r.(string); ok && s == want {
				return true
			}
		}
	case string:
		return roles == want
	}
	return false
}
