package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInGroup(t *testing.T) {
	staff := Player{Name: "bob", IsStaff: true, IsMod: true}
	owner := Player{Name: "alice", IsStaff: true, IsAdmin: true, IsOwner: true}
	guest := Player{Name: "guest"}

	assert.True(t, InGroup(guest, GroupAll))
	assert.True(t, InGroup(staff, GroupStaff))
	assert.True(t, InGroup(staff, GroupMod))
	assert.False(t, InGroup(staff, GroupAdmin))
	assert.True(t, InGroup(owner, GroupAdmin))
	assert.True(t, InGroup(owner, GroupOwner))
	assert.False(t, InGroup(guest, GroupStaff))
	assert.False(t, InGroup(guest, RoleGroup("moderators")), "Unknown groups should contain no one")
}

func TestInGroup_NobodyNeverMatches(t *testing.T) {
	players := []Player{
		{Name: "guest"},
		{Name: "owner", IsStaff: true, IsMod: true, IsAdmin: true, IsOwner: true},
	}
	for _, p := range players {
		assert.False(t, InGroup(p, GroupNobody), "nobody should never contain %s", p.Name)
	}
}

func TestMatches(t *testing.T) {
	rule := MessageRule{Message: "hi", JoinsLow: 2, JoinsHigh: 5, Group: GroupAll, NotGroup: GroupNobody}

	assert.False(t, Matches(Player{Joins: 1}, rule))
	assert.True(t, Matches(Player{Joins: 2}, rule))
	assert.True(t, Matches(Player{Joins: 5}, rule))
	assert.False(t, Matches(Player{Joins: 6}, rule))
}

func TestMatches_ExcludedGroup(t *testing.T) {
	rule := NewMessageRule("welcome back")
	rule.NotGroup = GroupStaff

	assert.True(t, Matches(Player{Joins: 3}, rule))
	assert.False(t, Matches(Player{Joins: 3, IsStaff: true}, rule))
}

func TestMatches_RequiredGroup(t *testing.T) {
	rule := NewMessageRule("hello admin")
	rule.Group = GroupAdmin

	assert.False(t, Matches(Player{Joins: 3, IsMod: true}, rule))
	assert.True(t, Matches(Player{Joins: 3, IsAdmin: true}, rule))
}

func TestMatches_InvertedRangeIsVacuous(t *testing.T) {
	rule := NewMessageRule("never")
	rule.JoinsLow, rule.JoinsHigh = 10, 1

	for joins := -1; joins <= 12; joins++ {
		assert.False(t, Matches(Player{Joins: joins}, rule), "joins=%d", joins)
	}
}

func TestMatches_Exhaustive(t *testing.T) {
	groups := append([]RoleGroup{"bogus"}, SupportedGroups...)
	players := []Player{
		{Joins: 0},
		{Joins: 4, IsStaff: true, IsMod: true},
		{Joins: 9, IsStaff: true, IsAdmin: true},
		{Joins: 20, IsStaff: true, IsAdmin: true, IsOwner: true},
	}
	for _, p := range players {
		for _, g := range groups {
			for _, ng := range groups {
				rule := MessageRule{JoinsLow: 1, JoinsHigh: 10, Group: g, NotGroup: ng}
				want := p.Joins >= 1 && p.Joins <= 10 && InGroup(p, g) && !InGroup(p, ng)
				assert.Equal(t, want, Matches(p, rule), "player=%+v group=%s not_group=%s", p, g, ng)
			}
		}
	}
}

func TestNewMessageRule_Defaults(t *testing.T) {
	rule := NewMessageRule("hello")
	assert.Equal(t, 0, rule.JoinsLow)
	assert.Equal(t, 9999, rule.JoinsHigh)
	assert.Equal(t, GroupAll, rule.Group)
	assert.Equal(t, GroupNobody, rule.NotGroup)
	assert.True(t, rule.Group.IsKnown())
	assert.False(t, RoleGroup("everyone").IsKnown())
}
