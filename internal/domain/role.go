package domain

import (
	"fmt"
	"strings"
)

// Role enumerates dashboard roles. The order is student < teacher < coordinator < admin.
type Role string

const (
	RoleStudent     Role = "student"
	RoleTeacher     Role = "teacher"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

var roleWeights = map[Role]int{
	RoleStudent:     1,
	RoleTeacher:     2,
	RoleCoordinator: 3,
	RoleAdmin:       4,
}

// Roles lists every known role from least to most privileged.
func Roles() []Role {
	return []Role{RoleStudent, RoleTeacher, RoleCoordinator, RoleAdmin}
}

// Weight returns the rank of the role, or 0 when the role is unknown.
func (r Role) Weight() int {
	return roleWeights[r]
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleWeights[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a raw string into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}
