package auth

import (
	"fmt"

	"github.com/campusgate/edu-gateway/internal/domain"
)

// Permission names surfaced to route guards.
const (
	PermReadOwnData        = "read:own_data"
	PermReadCourses        = "read:courses"
	PermSubmitAssignments  = "submit:assignments"
	PermReadGrades         = "read:grades"
	PermManageOwnCourses   = "manage:own_courses"
	PermReadStudents       = "read:students"
	PermGradeAssignments   = "grade:assignments"
	PermManageCourses      = "manage:courses"
	PermManageTeachers     = "manage:teachers"
	PermReadReports        = "read:reports"
	PermReadDepartmentData = "read:department_data"
	PermManageUsers        = "manage:users"
	PermManageSystem       = "manage:system"
	PermReadAllData        = "read:all_data"
)

// rolePermissions is the single role to permission table. Admin is filled in
// by init as the union of every other role plus its own grants.
var rolePermissions = map[domain.Role]map[string]struct{}{
	domain.RoleStudent: permissionSet(
		PermReadOwnData,
		PermReadCourses,
		PermSubmitAssignments,
		PermReadGrades,
	),
	domain.RoleTeacher: permissionSet(
		PermReadOwnData,
		PermReadCourses,
		PermManageOwnCourses,
		PermReadStudents,
		PermGradeAssignments,
	),
	domain.RoleCoordinator: permissionSet(
		PermReadOwnData,
		PermReadCourses,
		PermReadStudents,
		PermManageCourses,
		PermManageTeachers,
		PermReadReports,
		PermReadDepartmentData,
	),
}

func init() {
	admin := permissionSet(PermManageUsers, PermManageSystem, PermReadAllData)
	for _, set := range rolePermissions {
		for perm := range set {
			admin[perm] = struct{}{}
		}
	}
	rolePermissions[domain.RoleAdmin] = admin
}

func permissionSet(perms ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Satisfies reports whether actual is at least as privileged as required.
func Satisfies(actual, required domain.Role) bool {
	if !actual.Valid() || !required.Valid() {
		return false
	}
	return actual.Weight() >= required.Weight()
}

// HasPermission reports whether role is granted permission.
func HasPermission(role domain.Role, permission string) bool {
	_, ok := rolePermissions[role][permission]
	return ok
}

// Permissions returns a copy of the permissions granted to role.
func Permissions(role domain.Role) []string {
	set := rolePermissions[role]
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// Requirement is what a route demands of the caller. A zero Requirement only
// demands a known role.
type Requirement struct {
	Role       domain.Role
	Permission string
}

// RequireRole demands at least role.
func RequireRole(role domain.Role) Requirement {
	return Requirement{Role: role}
}

// RequirePermission demands permission.
func RequirePermission(permission string) Requirement {
	return Requirement{Permission: permission}
}

func (r Requirement) String() string {
	switch {
	case r.Role != "" && r.Permission != "":
		return fmt.Sprintf("role>=%s,permission=%s", r.Role, r.Permission)
	case r.Role != "":
		return "role>=" + string(r.Role)
	case r.Permission != "":
		return "permission=" + r.Permission
	default:
		return "authenticated"
	}
}

// Decision is the outcome of checking a role against a Requirement.
type Decision struct {
	Allowed bool
	Reason  string
}

// Check evaluates req for role.
func Check(role domain.Role, req Requirement) Decision {
	if !role.Valid() {
		return Decision{Reason: fmt.Sprintf("unknown role %q", role)}
	}
	if req.Role != "" && !Satisfies(role, req.Role) {
		return Decision{Reason: fmt.Sprintf("role %s does not satisfy %s", role, req.Role)}
	}
	if req.Permission != "" && !HasPermission(role, req.Permission) {
		return Decision{Reason: fmt.Sprintf("role %s lacks permission %s", role, req.Permission)}
	}
	return Decision{Allowed: true}
}
