package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdminHasAllPermissions(t *testing.T) {
	for _, p := range []string{PermissionReadEmails, PermissionManageGrants, PermissionManageLabels, PermissionTriggerSync, PermissionManageUsers} {
		assert.True(t, HasPermission(RoleAdmin, p), p)
	}
}

func TestUserOnlyReadsEmails(t *testing.T) {
	assert.True(t, HasPermission(RoleUser, PermissionReadEmails))
	assert.False(t, HasPermission(RoleUser, PermissionManageGrants))
	assert.False(t, HasPermission(RoleUser, PermissionManageLabels))
	assert.False(t, HasPermission(RoleUser, PermissionTriggerSync))
	assert.False(t, HasPermission(RoleUser, PermissionManageUsers))
}

func TestUnknownRoleDeniedEverything(t *testing.T) {
	assert.False(t, HasPermission("intern", PermissionReadEmails))
}

func TestCheckPermissionError(t *testing.T) {
	err := CheckPermission(RoleUser, PermissionTriggerSync)
	assert.Error(t, err)

	var denied *PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
	assert.Equal(t, RoleUser, denied.Role)
	assert.Equal(t, PermissionTriggerSync, denied.Permission)
}
