// internal/rules/group.go

package rules

// RoleGroup names a set of players by role.
type RoleGroup string

const (
	GroupAll    RoleGroup = "all"
	GroupStaff  RoleGroup = "staff"
	GroupMod    RoleGroup = "mod"
	GroupAdmin  RoleGroup = "admin"
	GroupOwner  RoleGroup = "owner"
	GroupNobody RoleGroup = "nobody"
)

var SupportedGroups = []RoleGroup{
	GroupAll,
	GroupStaff,
	GroupMod,
	GroupAdmin,
	GroupOwner,
	GroupNobody,
}

// IsKnown reports whether g is one of SupportedGroups.
func (g RoleGroup) IsKnown() bool {
	for _, supported := range SupportedGroups {
		if g == supported {
			return true
		}
	}
	return false
}
