package kanban

// Capability is a mutation right on the board.
type Capability string

const (
	CapCreate Capability = "create"
	CapEdit   Capability = "edit"
	CapDelete Capability = "delete"
)

// Can reports whether role holds the capability. It is evaluated on every call and
// never cached, so a role change takes effect on the next operation.
func Can(role UserRole, c Capability) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleMember:
		return c == CapCreate || c == CapEdit
	default:
		return false
	}
}

// Permissions summarizes what a user may do on the board.
type Permissions struct {
	Create bool `json:"canCreate"`
	Edit   bool `json:"canEdit"`
	Delete bool `json:"canDelete"`
}

// PermissionsFor returns the board permissions of u.
func PermissionsFor(u User) Permissions {
	return Permissions{
		Create: Can(u.SystemRole, CapCreate),
		Edit:   Can(u.SystemRole, CapEdit),
		Delete: Can(u.SystemRole, CapDelete),
	}
}

// NormalizeRole maps unknown role labels to the least privileged role.
func NormalizeRole(role string) UserRole {
	switch UserRole(role) {
	case RoleAdmin, RoleMember, RoleVisitor:
		return UserRole(role)
	default:
		return RoleVisitor
	}
}
