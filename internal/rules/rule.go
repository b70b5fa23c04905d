// internal/rules/rule.go

package rules

// MessageRule is a join or leave message together with the audience it targets.
type MessageRule struct {
	Message   string    `json:"message"`
	JoinsLow  int       `json:"joins_low"`
	JoinsHigh int       `json:"joins_high"`
	Group     RoleGroup `json:"group"`
	NotGroup  RoleGroup `json:"not_group"`
}

// TriggerRule is a MessageRule that fires when a chat line matches Trigger.
type TriggerRule struct {
	MessageRule
	Trigger string `json:"trigger"`
}

// AnnouncementRule is one entry of the announcement rotation.
type AnnouncementRule struct {
	Message string `json:"message"`
}

// Player is the host's view of a connected player. Role flags are resolved by the host.
type Player struct {
	Name    string `json:"name"`
	Joins   int    `json:"joins"`
	IsStaff bool   `json:"isStaff"`
	IsMod   bool   `json:"isMod"`
	IsAdmin bool   `json:"isAdmin"`
	IsOwner bool   `json:"isOwner"`
}

// Defaults used when a new rule is created without explicit audience settings.
const (
	DefaultJoinsLow  = 0
	DefaultJoinsHigh = 9999
)

// NewMessageRule returns a rule targeting everyone with the given message.
func NewMessageRule(message string) MessageRule {
	return MessageRule{
		Message:   message,
		JoinsLow:  DefaultJoinsLow,
		JoinsHigh: DefaultJoinsHigh,
		Group:     GroupAll,
		NotGroup:  GroupNobody,
	}
}

// NewTriggerRule returns a rule targeting everyone that responds to trigger.
func NewTriggerRule(trigger, message string) TriggerRule {
	return TriggerRule{MessageRule: NewMessageRule(message), Trigger: trigger}
}
