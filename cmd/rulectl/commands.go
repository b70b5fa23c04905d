package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"rgehrsitz/messagebot/internal/config"
	"rgehrsitz/messagebot/internal/preprocessor"
	"rgehrsitz/messagebot/internal/rules"
	"rgehrsitz/messagebot/internal/rulestore"
	"rgehrsitz/messagebot/internal/storage"
	"rgehrsitz/messagebot/internal/trigger"
)

const usage = `usage: rulectl [-storage driver] [-dsn dsn] [-namespace ns] <command> [args]

commands:
  validate -kind K [-regex] [-no-trim] FILE   check a JSON rule array
  import   -kind K FILE                       replace a rule list
  export   -kind K                            print a rule list
  add      -kind K -message M [options]       append a rule
  set      KEY VALUE                          store a setting
  show                                        print settings and list sizes

kinds: join, leave, trigger, announcement
`

var (
	errUsage  = errors.New("invalid usage")
	errIssues = errors.New("rules have issues")
)

func run(ctx context.Context, args []string, out io.Writer) error {
	var cfg config.Config
	global := flag.NewFlagSet("rulectl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	config.RegisterStorage(global, &cfg)
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if global.NArg() == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	if cmd == "validate" {
		return validate(rest, out)
	}

	kv, err := storage.Open(ctx, cfg.StorageDriver, cfg.StorageDSN, cfg.Namespace)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer kv.Close()
	store := rulestore.New(kv)

	switch cmd {
	case "import":
		return importRules(ctx, store, rest, out)
	case "export":
		return exportRules(ctx, store, rest, out)
	case "add":
		return addRule(ctx, store, rest, out)
	case "set":
		if len(rest) != 2 {
			return fmt.Errorf("%w: set takes KEY VALUE", errUsage)
		}
		return store.SetSetting(ctx, rest[0], rest[1])
	case "show":
		return show(ctx, store, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func kindFlag(fs *flag.FlagSet) *string {
	return fs.String("kind", "", "Rule list: join, leave, trigger or announcement")
}

func checkKind(kind string) error {
	if _, ok := rulestore.ListKeys[kind]; !ok {
		return fmt.Errorf("%w: unknown kind %q", errUsage, kind)
	}
	return nil
}

// parseFile decodes a rule file and returns the list for kind. Entries that do not
// decode come first in the issues, followed by validation issues for the rest; skipped
// entries are numbered by file position, validation issues by position in the list.
func parseFile(kind, path string, opts trigger.Options) (any, []preprocessor.Issue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	switch kind {
	case "join", "leave":
		list, skipped, err := preprocessor.DecodeMessageRules(data)
		if err != nil {
			return nil, nil, err
		}
		return list, append(skipped, preprocessor.ValidateMessageRules(list)...), nil
	case "trigger":
		list, skipped, err := preprocessor.DecodeTriggerRules(data)
		if err != nil {
			return nil, nil, err
		}
		return list, append(skipped, preprocessor.ValidateTriggerRules(list, opts)...), nil
	default:
		list, skipped, err := preprocessor.DecodeAnnouncements(data)
		if err != nil {
			return nil, nil, err
		}
		return list, append(skipped, preprocessor.ValidateAnnouncements(list)...), nil
	}
}

func printIssues(out io.Writer, issues []preprocessor.Issue) {
	for _, issue := range issues {
		fmt.Fprintln(out, issue.Error())
	}
}

func validate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kind := kindFlag(fs)
	regex := fs.Bool("regex", false, "Treat triggers as regular expressions")
	noTrim := fs.Bool("no-trim", false, "Do not trim whitespace around wildcard triggers")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := checkKind(*kind); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: validate takes one FILE", errUsage)
	}

	_, issues, err := parseFile(*kind, fs.Arg(0), trigger.Options{TrimWhitespace: !*noTrim, RegexMode: *regex})
	if err != nil {
		return err
	}
	printIssues(out, issues)
	if len(issues) > 0 {
		return errIssues
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func importRules(ctx context.Context, store *rulestore.Store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kind := kindFlag(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := checkKind(*kind); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: import takes one FILE", errUsage)
	}

	list, issues, err := parseFile(*kind, fs.Arg(0), store.Settings(ctx).TriggerOptions())
	if err != nil {
		return err
	}
	printIssues(out, issues)

	switch l := list.(type) {
	case []rules.MessageRule:
		if *kind == "join" {
			err = store.SaveJoinRules(ctx, l)
		} else {
			err = store.SaveLeaveRules(ctx, l)
		}
	case []rules.TriggerRule:
		err = store.SaveTriggerRules(ctx, l)
	case []rules.AnnouncementRule:
		err = store.SaveAnnouncements(ctx, l)
	}
	if err != nil {
		return fmt.Errorf("saving %s rules: %w", *kind, err)
	}
	fmt.Fprintf(out, "imported %s rules\n", *kind)
	return nil
}

func loadList(ctx context.Context, store *rulestore.Store, kind string) any {
	switch kind {
	case "join":
		return store.JoinRules(ctx)
	case "leave":
		return store.LeaveRules(ctx)
	case "trigger":
		return store.TriggerRules(ctx)
	default:
		return store.Announcements(ctx)
	}
}

func exportRules(ctx context.Context, store *rulestore.Store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kind := kindFlag(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := checkKind(*kind); err != nil {
		return err
	}

	data, err := json.MarshalIndent(loadList(ctx, store, *kind), "", "  ")
	if err != nil {
		return err
	}
	if string(data) == "null" {
		data = []byte("[]")
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func addRule(ctx context.Context, store *rulestore.Store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kind := kindFlag(fs)
	message := fs.String("message", "", "Message to send")
	trig := fs.String("trigger", "", "Trigger pattern (trigger rules)")
	joinsLow := fs.Int("joins-low", rules.DefaultJoinsLow, "Minimum join count")
	joinsHigh := fs.Int("joins-high", rules.DefaultJoinsHigh, "Maximum join count")
	group := fs.String("group", string(rules.GroupAll), "Group the player must be in")
	notGroup := fs.String("not-group", string(rules.GroupNobody), "Group the player must not be in")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := checkKind(*kind); err != nil {
		return err
	}

	rule := rules.NewMessageRule(*message)
	rule.JoinsLow, rule.JoinsHigh = *joinsLow, *joinsHigh
	rule.Group, rule.NotGroup = rules.RoleGroup(*group), rules.RoleGroup(*notGroup)

	var issues []preprocessor.Issue
	var err error
	switch *kind {
	case "join", "leave":
		issues = preprocessor.ValidateMessageRules([]rules.MessageRule{rule})
		load, save := store.LoadJoinRules, store.SaveJoinRules
		if *kind == "leave" {
			load, save = store.LoadLeaveRules, store.SaveLeaveRules
		}
		var list []rules.MessageRule
		if list, err = load(ctx); err == nil {
			err = save(ctx, append(list, rule))
		}
	case "trigger":
		tr := rules.TriggerRule{MessageRule: rule, Trigger: *trig}
		issues = preprocessor.ValidateTriggerRules([]rules.TriggerRule{tr}, store.Settings(ctx).TriggerOptions())
		var list []rules.TriggerRule
		if list, err = store.LoadTriggerRules(ctx); err == nil {
			err = store.SaveTriggerRules(ctx, append(list, tr))
		}
	case "announcement":
		a := rules.AnnouncementRule{Message: *message}
		issues = preprocessor.ValidateAnnouncements([]rules.AnnouncementRule{a})
		var list []rules.AnnouncementRule
		if list, err = store.LoadAnnouncements(ctx); err == nil {
			err = store.SaveAnnouncements(ctx, append(list, a))
		}
	}
	if err != nil {
		return fmt.Errorf("adding %s rule: %w", *kind, err)
	}
	printIssues(out, issues)
	fmt.Fprintf(out, "added %s rule\n", *kind)
	return nil
}

func show(ctx context.Context, store *rulestore.Store, out io.Writer) error {
	s := store.Settings(ctx)
	fmt.Fprintf(out, "%s = %g\n", rulestore.KeyRejoinCooldown, s.RejoinCooldown.Seconds())
	fmt.Fprintf(out, "%s = %g\n", rulestore.KeyTriggerCooldown, s.TriggerCooldown.Seconds())
	fmt.Fprintf(out, "%s = %d\n", rulestore.KeyMaxResponses, s.MaxResponses)
	fmt.Fprintf(out, "%s = %g\n", rulestore.KeyAnnouncementDelay, s.AnnouncementDelay.Minutes())
	fmt.Fprintf(out, "%s = %t\n", rulestore.KeyDisableWhitespaceTrimming, s.DisableWhitespaceTrimming)
	fmt.Fprintf(out, "%s = %t\n", rulestore.KeyRegexTriggers, s.RegexTriggers)

	kinds := make([]string, 0, len(rulestore.ListKeys))
	for kind := range rulestore.ListKeys {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(out, "%s rules: %d\n", kind, listLen(loadList(ctx, store, kind)))
	}
	return nil
}

func listLen(list any) int {
	switch l := list.(type) {
	case []rules.MessageRule:
		return len(l)
	case []rules.TriggerRule:
		return len(l)
	case []rules.AnnouncementRule:
		return len(l)
	}
	return 0
}
