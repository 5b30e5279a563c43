package domain

import "time"

// Role enumerates the fixed set of caller roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role may work tickets.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// Identity is an already-authenticated actor.
type Identity struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
}
