package rbac

type Role string
type Action string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const (
	ActionRead   Action = "read"
	ActionPost   Action = "post"
	ActionReact  Action = "react"
	ActionManage Action = "manage"
)

// Can reports whether a workspace member with role may perform action.
// Managing covers workspace settings, join codes, channels and member roles.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleMember:
		return action == ActionRead || action == ActionPost || action == ActionReact
	default:
		return false
	}
}

// Parse validates a role name. Unknown names are rejected rather than
// downgraded so role updates cannot silently pick a default.
func Parse(role string) (Role, bool) {
	switch Role(role) {
	case RoleAdmin, RoleMember:
		return Role(role), true
	default:
		return "", false
	}
}
