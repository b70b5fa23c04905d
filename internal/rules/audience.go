package rules

// Matches reports whether rule's audience filter selects player.
func Matches(player Player, rule MessageRule) bool {
	return InJoinRange(player, rule) && InAudienceGroups(player, rule)
}

// InJoinRange checks joins_low <= joins <= joins_high. An inverted range matches nobody.
func InJoinRange(player Player, rule MessageRule) bool {
	return player.Joins >= rule.JoinsLow && player.Joins <= rule.JoinsHigh
}

// InAudienceGroups checks that the player is in Group and not in NotGroup.
func InAudienceGroups(player Player, rule MessageRule) bool {
	return InGroup(player, rule.Group) && !InGroup(player, rule.NotGroup)
}

// InGroup reports group membership. GroupNobody and unrecognized groups contain no one,
// so a NotGroup of "nobody" excludes no one.
func InGroup(player Player, group RoleGroup) bool {
	switch group {
	case GroupAll:
		return true
	case GroupStaff:
		return player.IsStaff
	case GroupMod:
		return player.IsMod
	case GroupAdmin:
		return player.IsAdmin
	case GroupOwner:
		return player.IsOwner
	default:
		return false
	}
}
