// Package responder maps a user utterance to one of a fixed set of canned
// replies. Everything here is pure and safe for concurrent use.
package responder

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultRuleName labels replies produced when no rule matches.
const DefaultRuleName = "default"

// Rule pairs a normalized pattern with the reply it produces.
type Rule struct {
	Pattern string
	Reply   string
}

// rules is evaluated in order; the first exact match wins.
var rules = []Rule{
	{Pattern: "hello", Reply: "goodbye"},
	{Pattern: "how are you", Reply: "i'm fine"},
	{Pattern: "bye", Reply: "bye bye"},
}

// Rules returns a copy of the ordered rule table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Respond returns the reply for utterance. It never fails.
func Respond(utterance string) string {
	if r, ok := Match(utterance); ok {
		return r.Reply
	}
	return DefaultReply(utterance)
}

// Match reports the rule that answers utterance, if any.
func Match(utterance string) (Rule, bool) {
	normalized := Normalize(utterance)
	for _, r := range rules {
		if normalized == r.Pattern {
			return r, true
		}
	}
	return Rule{}, false
}

// RuleName returns the pattern of the matching rule, or DefaultRuleName.
func RuleName(utterance string) string {
	if r, ok := Match(utterance); ok {
		return r.Pattern
	}
	return DefaultRuleName
}

// DefaultReply echoes the original, unmodified utterance.
func DefaultReply(utterance string) string {
	return fmt.Sprintf("I received your message: '%s'. I can respond to 'hello', 'how are you?', and 'bye'.", utterance)
}

// Normalize lowercases and trims s, then drops every rune that is neither a
// word character nor whitespace. Whitespace runs are left untouched, and so
// is any whitespace left at the ends once punctuation is gone.
func Normalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	return strings.Map(func(r rune) rune {
		if isWord(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
