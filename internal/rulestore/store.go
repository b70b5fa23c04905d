// Package rulestore reads and writes the persisted rule lists and dispatch settings.
//
// Storage is the source of truth: the engine reads through this package on every event
// and never caches. Read failures are logged and degrade to an empty list or the default
// setting.
package rulestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rgehrsitz/messagebot/internal/preprocessor"
	"rgehrsitz/messagebot/internal/rules"
	"rgehrsitz/messagebot/internal/storage"
	"rgehrsitz/messagebot/internal/trigger"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Rule list keys.
const (
	KeyJoin         = "joinArr"
	KeyLeave        = "leaveArr"
	KeyTrigger      = "triggerArr"
	KeyAnnouncement = "announcementArr"
)

// Setting keys.
const (
	KeyRejoinCooldown            = "rejoinCooldown"
	KeyTriggerCooldown           = "triggerCooldown"
	KeyMaxResponses              = "maxResponses"
	KeyAnnouncementDelay         = "announcementDelay"
	KeyDisableWhitespaceTrimming = "disableWhitespaceTrimming"
	KeyRegexTriggers             = "regexTriggers"
)

// Setting defaults, in the units they are stored in.
const (
	DefaultRejoinCooldownSeconds   = 30
	DefaultTriggerCooldownSeconds  = 10
	DefaultMaxResponses            = 3
	DefaultAnnouncementDelayMinute = 10
)

// ListKeys maps the kind names used by the CLI to storage keys.
var ListKeys = map[string]string{
	"join":         KeyJoin,
	"leave":        KeyLeave,
	"trigger":      KeyTrigger,
	"announcement": KeyAnnouncement,
}

var settingKeys = []string{
	KeyRejoinCooldown,
	KeyTriggerCooldown,
	KeyMaxResponses,
	KeyAnnouncementDelay,
	KeyDisableWhitespaceTrimming,
	KeyRegexTriggers,
}

// Settings are the scalar dispatch settings, converted to Go units.
type Settings struct {
	RejoinCooldown            time.Duration
	TriggerCooldown           time.Duration
	MaxResponses              int
	AnnouncementDelay         time.Duration
	DisableWhitespaceTrimming bool
	RegexTriggers             bool
}

// DefaultSettings are used for every key that is absent or unreadable.
func DefaultSettings() Settings {
	return Settings{
		RejoinCooldown:    DefaultRejoinCooldownSeconds * time.Second,
		TriggerCooldown:   DefaultTriggerCooldownSeconds * time.Second,
		MaxResponses:      DefaultMaxResponses,
		AnnouncementDelay: DefaultAnnouncementDelayMinute * time.Minute,
	}
}

// TriggerOptions derives the trigger compile options from the settings.
func (s Settings) TriggerOptions() trigger.Options {
	return trigger.Options{
		TrimWhitespace: !s.DisableWhitespaceTrimming,
		RegexMode:      s.RegexTriggers,
	}
}

// Store gives typed access to the rule lists in a storage.Store.
type Store struct {
	kv     storage.Store
	logger zerolog.Logger
}

func New(kv storage.Store) *Store {
	return &Store{
		kv:     kv,
		logger: log.With().Str("component", "rulestore").Logger(),
	}
}

func (s *Store) JoinRules(ctx context.Context) []rules.MessageRule {
	return load(ctx, s, KeyJoin, preprocessor.ParseMessageRules)
}

func (s *Store) LeaveRules(ctx context.Context) []rules.MessageRule {
	return load(ctx, s, KeyLeave, preprocessor.ParseMessageRules)
}

func (s *Store) TriggerRules(ctx context.Context) []rules.TriggerRule {
	return load(ctx, s, KeyTrigger, preprocessor.ParseTriggerRules)
}

func (s *Store) Announcements(ctx context.Context) []rules.AnnouncementRule {
	return load(ctx, s, KeyAnnouncement, preprocessor.ParseAnnouncements)
}

func load[T any](ctx context.Context, s *Store, key string, parse func([]byte) ([]T, error)) []T {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Reading rules failed, using empty list")
		return nil
	}
	if !ok {
		return nil
	}
	list, err := parse(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Decoding rules failed, using empty list")
		return nil
	}
	return list
}

// ErrMalformedList is returned by the strict loaders when a stored list has entries
// that do not decode.
var ErrMalformedList = errors.New("stored rule list has malformed entries")

// LoadJoinRules reads the join list for read-modify-write. Unlike JoinRules it reports
// storage and decode errors, so a caller never saves over a list it could not read.
func (s *Store) LoadJoinRules(ctx context.Context) ([]rules.MessageRule, error) {
	return loadStrict(ctx, s, KeyJoin, preprocessor.DecodeMessageRules)
}

func (s *Store) LoadLeaveRules(ctx context.Context) ([]rules.MessageRule, error) {
	return loadStrict(ctx, s, KeyLeave, preprocessor.DecodeMessageRules)
}

func (s *Store) LoadTriggerRules(ctx context.Context) ([]rules.TriggerRule, error) {
	return loadStrict(ctx, s, KeyTrigger, preprocessor.DecodeTriggerRules)
}

func (s *Store) LoadAnnouncements(ctx context.Context) ([]rules.AnnouncementRule, error) {
	return loadStrict(ctx, s, KeyAnnouncement, preprocessor.DecodeAnnouncements)
}

func loadStrict[T any](ctx context.Context, s *Store, key string, decode func([]byte) ([]T, []preprocessor.Issue, error)) ([]T, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	list, skipped, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	if len(skipped) > 0 {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedList, key, skipped[0])
	}
	return list, nil
}

// SaveJoinRules replaces the join rule list.
func (s *Store) SaveJoinRules(ctx context.Context, list []rules.MessageRule) error {
	return storage.SetJSON(ctx, s.kv, KeyJoin, nonNil(list))
}

// SaveLeaveRules replaces the leave rule list.
func (s *Store) SaveLeaveRules(ctx context.Context, list []rules.MessageRule) error {
	return storage.SetJSON(ctx, s.kv, KeyLeave, nonNil(list))
}

// SaveTriggerRules replaces the trigger rule list.
func (s *Store) SaveTriggerRules(ctx context.Context, list []rules.TriggerRule) error {
	return storage.SetJSON(ctx, s.kv, KeyTrigger, nonNil(list))
}

// SaveAnnouncements replaces the announcement rotation.
func (s *Store) SaveAnnouncements(ctx context.Context, list []rules.AnnouncementRule) error {
	return storage.SetJSON(ctx, s.kv, KeyAnnouncement, nonNil(list))
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

// Settings reads every scalar setting in one round trip.
func (s *Store) Settings(ctx context.Context) Settings {
	out := DefaultSettings()
	values, err := s.kv.GetMany(ctx, settingKeys)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Reading settings failed, using defaults")
		return out
	}

	if n, ok := s.number(values, KeyRejoinCooldown); ok {
		out.RejoinCooldown = seconds(n)
	}
	if n, ok := s.number(values, KeyTriggerCooldown); ok {
		out.TriggerCooldown = seconds(n)
	}
	if n, ok := s.number(values, KeyMaxResponses); ok {
		out.MaxResponses = int(n)
	}
	if n, ok := s.number(values, KeyAnnouncementDelay); ok {
		out.AnnouncementDelay = time.Duration(n * float64(time.Minute))
	}
	if b, ok := s.boolean(values, KeyDisableWhitespaceTrimming); ok {
		out.DisableWhitespaceTrimming = b
	}
	if b, ok := s.boolean(values, KeyRegexTriggers); ok {
		out.RegexTriggers = b
	}
	return out
}

func seconds(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}

// number accepts a JSON number or a numeric string, since form inputs store either.
func (s *Store) number(values map[string][]byte, key string) (float64, bool) {
	raw, ok := values[key]
	if !ok {
		return 0, false
	}
	n, err := ParseNumber(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Ignoring setting")
		return 0, false
	}
	return n, true
}

func (s *Store) boolean(values map[string][]byte, key string) (bool, bool) {
	raw, ok := values[key]
	if !ok {
		return false, false
	}
	b, err := ParseBool(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Ignoring setting")
		return false, false
	}
	return b, true
}

// ParseNumber decodes a JSON number or a JSON string holding a number.
func ParseNumber(raw []byte) (float64, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("expected number, got %s", raw)
	}
}

// ParseBool decodes a JSON bool or a JSON string holding a bool.
func ParseBool(raw []byte) (bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(t))
	default:
		return false, fmt.Errorf("expected bool, got %s", raw)
	}
}

// SetSetting stores a scalar setting. value is validated against the key's type.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	switch key {
	case KeyRejoinCooldown, KeyTriggerCooldown, KeyMaxResponses, KeyAnnouncementDelay:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("setting %s expects a number: %w", key, err)
		}
		return storage.SetJSON(ctx, s.kv, key, n)
	case KeyDisableWhitespaceTrimming, KeyRegexTriggers:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("setting %s expects true or false: %w", key, err)
		}
		return storage.SetJSON(ctx, s.kv, key, b)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
}
