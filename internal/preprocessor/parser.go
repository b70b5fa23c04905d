package preprocessor

import (
	"encoding/json"
	"fmt"
	"rgehrsitz/messagebot/internal/rules"

	"github.com/rs/zerolog/log"
)

// ParseMessageRules decodes a persisted join or leave rule list.
func ParseMessageRules(rulesJSON []byte) ([]rules.MessageRule, error) {
	return logSkipped(DecodeMessageRules(rulesJSON))
}

// ParseTriggerRules decodes a persisted trigger rule list.
func ParseTriggerRules(rulesJSON []byte) ([]rules.TriggerRule, error) {
	return logSkipped(DecodeTriggerRules(rulesJSON))
}

// ParseAnnouncements decodes a persisted announcement list.
func ParseAnnouncements(rulesJSON []byte) ([]rules.AnnouncementRule, error) {
	return logSkipped(DecodeAnnouncements(rulesJSON))
}

// DecodeMessageRules is ParseMessageRules but returns skipped elements as issues
// instead of logging them.
func DecodeMessageRules(rulesJSON []byte) ([]rules.MessageRule, []Issue, error) {
	return parseList[rules.MessageRule](rulesJSON, "message")
}

func DecodeTriggerRules(rulesJSON []byte) ([]rules.TriggerRule, []Issue, error) {
	return parseList[rules.TriggerRule](rulesJSON, "trigger")
}

func DecodeAnnouncements(rulesJSON []byte) ([]rules.AnnouncementRule, []Issue, error) {
	return parseList[rules.AnnouncementRule](rulesJSON, "announcement")
}

func logSkipped[T any](list []T, skipped []Issue, err error) ([]T, error) {
	for _, issue := range skipped {
		log.Warn().Int("index", issue.Index).Str("reason", issue.Message).Msg("Skipping malformed rule")
	}
	return list, err
}

// parseList decodes a JSON array one element at a time. Elements that fail to decode
// are skipped and reported with their index in the input, so one bad entry does not
// hide the rest of the list. Empty input and JSON null both yield an empty list.
func parseList[T any](rulesJSON []byte, kind string) ([]T, []Issue, error) {
	if len(rulesJSON) == 0 {
		return nil, nil, nil
	}
	var ruleDefs []json.RawMessage
	if err := json.Unmarshal(rulesJSON, &ruleDefs); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal %s rules JSON: %w", kind, err)
	}

	parsed := make([]T, 0, len(ruleDefs))
	var skipped []Issue
	for i, rJSON := range ruleDefs {
		rule, err := parseRule[T](rJSON)
		if err != nil {
			skipped = append(skipped, Issue{Index: i, Field: kind, Message: fmt.Sprintf("malformed, skipped: %v", err)})
			continue
		}
		parsed = append(parsed, rule)
	}
	return parsed, skipped, nil
}

func parseRule[T any](ruleJSON []byte) (T, error) {
	var rule T
	if err := json.Unmarshal(ruleJSON, &rule); err != nil {
		return rule, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return rule, nil
}
