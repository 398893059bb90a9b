package auth

import (
	"context"
	"slices"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

const (
	PermEmployeesRead   = "employees.read"
	PermEmployeesWrite  = "employees.write"
	PermEmployeesExport = "employees.export"
	PermRecycleRead     = "recycle.read"
	PermRecycleRestore  = "recycle.restore"
	PermRecyclePurge    = "recycle.purge"
	PermSettingsRead    = "settings.read"
	PermSettingsWrite   = "settings.write"
	PermSystemAdmin     = "admin.system"
)

var RolePermissions = map[string][]string{
	RoleViewer: {
		PermEmployeesRead,
		PermEmployeesExport,
		PermRecycleRead,
		PermSettingsRead,
	},
	RoleEditor: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermEmployeesExport,
		PermRecycleRead,
		PermRecycleRestore,
		PermSettingsRead,
	},
	RoleAdmin: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermEmployeesExport,
		PermRecycleRead,
		PermRecycleRestore,
		PermRecyclePurge,
		PermSettingsRead,
		PermSettingsWrite,
		PermSystemAdmin,
	},
}

func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

// Permissions resolves role names against the static role table.
type Permissions struct{}

func (Permissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	return slices.Contains(RolePermissions[role], permission), nil
}
