package domain

// Role enumerates the actor roles known to the attendance engine. Roles are
// established upstream by the identity layer; this core only consumes them.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Valid reports whether the role is one the engine recognizes.
func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}
