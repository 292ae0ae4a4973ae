package auth

// Role represents a user role.
type Role string

const (
	RoleCompanyViewer Role = "company_viewer"
	RoleCompanyAdmin  Role = "company_admin"
	RoleGlobalAdmin   Role = "global_admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleCompanyViewer, RoleCompanyAdmin, RoleGlobalAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleCompanyViewer:
		return 1
	case RoleCompanyAdmin:
		return 2
	case RoleGlobalAdmin:
		return 3
	default:
		return 0
	}
}
