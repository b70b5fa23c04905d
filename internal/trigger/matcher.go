// Package trigger compiles chat trigger patterns into case-insensitive matchers.
//
// A trigger is either a wildcard pattern, where "*" matches any run of characters and
// everything else is literal, or (in regex mode) a regular expression in RE2 syntax.
// Matching is always unanchored: a trigger matches if it occurs anywhere in the message.
package trigger

import (
	"regexp"
	"strings"
)

// Options controls how trigger sources are compiled.
type Options struct {
	// TrimWhitespace strips surrounding whitespace from wildcard triggers.
	TrimWhitespace bool
	// RegexMode treats the trigger source as a regular expression.
	RegexMode bool
}

// DefaultOptions are used when no storage settings override them.
//
// Trimming never applies in regex mode. Regex triggers saved by older editors with
// surrounding spaces keep those spaces and only match text that contains them.
var DefaultOptions = Options{TrimWhitespace: true}

// Matcher is a compiled trigger.
type Matcher struct {
	re *regexp.Regexp
}

// Compile turns source into a Matcher. Only regex mode can fail.
func Compile(source string, opts Options) (*Matcher, error) {
	pattern := source
	if !opts.RegexMode {
		pattern = wildcardPattern(source, opts.TrimWhitespace)
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	return &Matcher{re: re}, nil
}

// MatchString reports whether message contains the trigger.
func (m *Matcher) MatchString(message string) bool {
	if m == nil {
		return false
	}
	return m.re.MatchString(message)
}

// Matches compiles trigger and tests it against message. A trigger that does not
// compile never matches.
func Matches(trigger, message string, opts Options) bool {
	m, err := Compile(trigger, opts)
	if err != nil {
		return false
	}
	return m.MatchString(message)
}

func wildcardPattern(source string, trim bool) string {
	if trim {
		source = strings.TrimSpace(source)
	}
	return strings.ReplaceAll(regexp.QuoteMeta(source), `\*`, ".*")
}
