package domain

import "fmt"

// Role is the closed set of principal roles.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleSupportAgent Role = "SUPPORT_AGENT"
	RoleEngineer     Role = "ENGINEER"
	RoleUser         Role = "USER"
)

// Roles lists every defined role.
var Roles = []Role{RoleAdmin, RoleSupportAgent, RoleEngineer, RoleUser}

// ParseRole validates a role string coming from external input.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	for _, candidate := range Roles {
		if role == candidate {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Principal is the authenticated caller of a request. The role is embedded
// at token issuance so authorization checks need no user lookup.
type Principal struct {
	ID   string
	Role Role
}
