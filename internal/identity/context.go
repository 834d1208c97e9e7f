package identity

import "context"

// Role is the authenticated caller's role.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Caller is the verified identity attached to every request. The core
// trusts it; credential checks happen upstream.
type Caller struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

type ctxKey string

const callerKey ctxKey = "clinic.caller"

// WithCaller stores the caller identity in context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext extracts the caller identity if present.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	val := ctx.Value(callerKey)
	if val == nil {
		return Caller{}, false
	}
	c, ok := val.(Caller)
	return c, ok && c.ID != ""
}

// ParseRole maps a raw claim value to a known role.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RolePatient, RoleDoctor, RoleAdmin:
		return Role(raw), true
	default:
		return "", false
	}
}
