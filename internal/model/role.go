package model

import "fmt"

// Role is the RBAC role carried in a caller's token.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleReader  Role = "reader"
)

// RoleRank returns the numeric rank of a role (higher = more privileges).
// Unknown roles rank 0 and pass no RoleAtLeast check.
func RoleRank(r Role) int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleAnalyst:
		return 2
	case RoleReader:
		return 1
	default:
		return 0
	}
}

// RoleAtLeast returns true if role r has at least the privileges of minRole.
func RoleAtLeast(r, minRole Role) bool {
	return RoleRank(r) >= RoleRank(minRole) && RoleRank(r) > 0
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if RoleRank(r) == 0 {
		return "", fmt.Errorf("unknown role %q (want admin, analyst or reader)", s)
	}
	return r, nil
}
