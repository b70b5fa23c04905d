package preprocessor

import (
	"fmt"
	"rgehrsitz/messagebot/internal/rules"
	"rgehrsitz/messagebot/internal/trigger"
)

// Issue describes a rule that is accepted by the engine but probably not what its author
// intended.
type Issue struct {
	Index   int
	Field   string
	Message string
}

func (i Issue) Error() string {
	return fmt.Sprintf("rule %d: %s: %s", i.Index, i.Field, i.Message)
}

// ValidateMessageRules reports suspicious join/leave rules. The engine still dispatches
// every rule as stored; issues are advisory.
func ValidateMessageRules(messageRules []rules.MessageRule) []Issue {
	var issues []Issue
	for i, rule := range messageRules {
		issues = append(issues, validateMessageRule(i, rule)...)
	}
	return issues
}

// ValidateTriggerRules reports suspicious trigger rules, including triggers that will
// never compile under opts.
func ValidateTriggerRules(triggerRules []rules.TriggerRule, opts trigger.Options) []Issue {
	var issues []Issue
	for i, rule := range triggerRules {
		issues = append(issues, validateMessageRule(i, rule.MessageRule)...)
		issues = append(issues, validateTrigger(i, rule.Trigger, opts)...)
	}
	return issues
}

// ValidateAnnouncements reports announcements that will be skipped by the rotation.
func ValidateAnnouncements(announcements []rules.AnnouncementRule) []Issue {
	var issues []Issue
	for i, a := range announcements {
		if a.Message == "" {
			issues = append(issues, Issue{Index: i, Field: "message", Message: "empty message is skipped"})
		}
	}
	return issues
}

func validateMessageRule(index int, rule rules.MessageRule) []Issue {
	var issues []Issue
	if rule.Message == "" {
		issues = append(issues, Issue{Index: index, Field: "message", Message: "empty message"})
	}
	if rule.JoinsLow > rule.JoinsHigh {
		issues = append(issues, Issue{
			Index:   index,
			Field:   "joins_low",
			Message: fmt.Sprintf("range [%d, %d] is inverted and matches no player", rule.JoinsLow, rule.JoinsHigh),
		})
	}
	if !rule.Group.IsKnown() {
		issues = append(issues, Issue{Index: index, Field: "group", Message: fmt.Sprintf("unknown group %q matches no player", rule.Group)})
	}
	if !rule.NotGroup.IsKnown() {
		issues = append(issues, Issue{Index: index, Field: "not_group", Message: fmt.Sprintf("unknown group %q excludes no player", rule.NotGroup)})
	}
	if rule.Group == rules.GroupNobody {
		issues = append(issues, Issue{Index: index, Field: "group", Message: "group \"nobody\" matches no player"})
	}
	if rule.NotGroup == rules.GroupAll {
		issues = append(issues, Issue{Index: index, Field: "not_group", Message: "not_group \"all\" excludes every player"})
	}
	return issues
}

func validateTrigger(index int, source string, opts trigger.Options) []Issue {
	if source == "" {
		return []Issue{{Index: index, Field: "trigger", Message: "empty trigger matches every message"}}
	}
	if _, err := trigger.Compile(source, opts); err != nil {
		return []Issue{{Index: index, Field: "trigger", Message: fmt.Sprintf("does not compile and never matches: %v", err)}}
	}
	return nil
}
