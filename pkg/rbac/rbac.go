package rbac

const (
	PermissionReadEmails   = "email:read"
	PermissionManageGrants = "grant:manage"
	PermissionManageLabels = "label:manage"
	PermissionTriggerSync  = "sync:trigger"
	PermissionManageUsers  = "user:manage"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var rolePermissions = map[string][]string{
	RoleUser: {
		PermissionReadEmails,
	},
	RoleAdmin: {
		PermissionReadEmails,
		PermissionManageGrants,
		PermissionManageLabels,
		PermissionTriggerSync,
		PermissionManageUsers,
	},
}

// HasPermission checks whether a role carries the given permission.
func HasPermission(role, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission returns an error instead of a boolean, which is easier to
// surface from middleware.
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Role: role, Permission: permission}
	}
	return nil
}

type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
