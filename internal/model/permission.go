package model

// Permission represents a string code for a specific dashboard action.
type Permission string

const (
	// PermissionUsersRead allows viewing user lists and details.
	PermissionUsersRead Permission = "users:read"

	// PermissionUsersWrite allows creating, updating, and deleting users.
	PermissionUsersWrite Permission = "users:write"

	// PermissionExamsRead allows viewing exam lists and details.
	PermissionExamsRead Permission = "exams:read"

	// PermissionExamsWrite allows creating, updating, and deleting exams.
	PermissionExamsWrite Permission = "exams:write"

	// PermissionMaterialsRead allows viewing study materials.
	PermissionMaterialsRead Permission = "materials:read"

	// PermissionMaterialsWrite allows managing study materials.
	PermissionMaterialsWrite Permission = "materials:write"

	// PermissionBadgesRead allows viewing badges.
	PermissionBadgesRead Permission = "badges:read"

	// PermissionBadgesWrite allows managing badges.
	PermissionBadgesWrite Permission = "badges:write"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionUsersRead,
	PermissionUsersWrite,
	PermissionExamsRead,
	PermissionExamsWrite,
	PermissionMaterialsRead,
	PermissionMaterialsWrite,
	PermissionBadgesRead,
	PermissionBadgesWrite,
}

// RolePermissions is the default role -> permission table. Entries may use
// "*" or a "prefix:*" wildcard.
var RolePermissions = map[string][]string{
	"super_admin":     {"*"},
	"content_manager": {"exams:*", "materials:*", "badges:*", "users:read"},
	"viewer":          {"users:read", "exams:read", "materials:read", "badges:read"},
}
