// Package identity reconciles the several identifiers an order can be known by.
//
// Chat threads, unread counters and bid lookups are keyed by whichever alias the
// backend used when the sub-resource was created. Every comparison between an
// alias and an order goes through this package.
package identity

import (
	"strconv"
	"strings"
)

// genericPrefixes are display and submission prefixes that carry no family
// meaning and wrap the bare numeric id.
var genericPrefixes = []string{"ORD-", "SUB-"}

// Subject exposes the aliases of an order.
type Subject struct {
	DisplayID    string
	InternalID   string
	SubmissionID string
}

// Aliases returns the distinct raw aliases of s in preference order.
func Aliases(s Subject) []string {
	seen := make(map[string]struct{}, 4)
	out := make([]string, 0, 4)
	add := func(value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if _, ok := seen[value]; ok {
			return
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	add(s.SubmissionID)
	add(s.DisplayID)
	add(s.InternalID)
	if stripped, ok := stripGenericPrefix(s.DisplayID); ok {
		add(stripped)
	}
	return out
}

// Keys returns the normalised comparison keys for a single alias.
func Keys(alias string) []string {
	alias = strings.ToUpper(strings.TrimSpace(alias))
	if alias == "" {
		return nil
	}
	keys := []string{alias}
	if numeric, ok := canonicalNumber(alias); ok {
		if numeric != alias {
			keys = append(keys, numeric)
		}
		return keys
	}
	if stripped, ok := stripGenericPrefix(alias); ok {
		if numeric, ok := canonicalNumber(stripped); ok {
			keys = append(keys, numeric)
		}
	}
	return keys
}

// KeySet returns every comparison key of every alias of s.
func KeySet(s Subject) map[string]struct{} {
	set := make(map[string]struct{}, 6)
	for _, alias := range Aliases(s) {
		for _, key := range Keys(alias) {
			set[key] = struct{}{}
		}
	}
	return set
}

// Matches reports whether alias identifies s.
func Matches(alias string, s Subject) bool {
	keys := Keys(alias)
	if len(keys) == 0 {
		return false
	}
	set := KeySet(s)
	for _, key := range keys {
		if _, ok := set[key]; ok {
			return true
		}
	}
	return false
}

// Equivalent reports whether a and b both identify s.
func Equivalent(s Subject, a, b string) bool {
	return Matches(a, s) && Matches(b, s)
}

// ThreadAlias returns the alias used to address the chat thread of s.
func ThreadAlias(s Subject) string {
	for _, candidate := range []string{s.SubmissionID, s.DisplayID, s.InternalID} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return ""
}

// PrimaryKey returns a stable key for s, used to serialise work per order.
func PrimaryKey(s Subject) string {
	if id := strings.TrimSpace(s.InternalID); id != "" {
		if numeric, ok := canonicalNumber(id); ok {
			return numeric
		}
		return strings.ToUpper(id)
	}
	keys := Keys(ThreadAlias(s))
	if len(keys) == 0 {
		return ""
	}
	return keys[len(keys)-1]
}

func stripGenericPrefix(value string) (string, bool) {
	value = strings.TrimSpace(value)
	upper := strings.ToUpper(value)
	for _, prefix := range genericPrefixes {
		if strings.HasPrefix(upper, prefix) && len(value) > len(prefix) {
			rest := value[len(prefix):]
			if _, ok := canonicalNumber(rest); ok {
				return rest, true
			}
		}
	}
	return "", false
}

func canonicalNumber(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatUint(n, 10), true
}
