// Package servicetype maps filing orders onto the service family that owns their
// status vocabulary and backend update operation.
package servicetype

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Family identifies a filing service family.
type Family string

// MatchKind declares which order attribute an entry inspects.
type MatchKind int

const (
	// MatchDisplayPrefix matches when the display id starts with the pattern.
	MatchDisplayPrefix MatchKind = iota + 1
	// MatchServiceName matches when the service name contains the pattern.
	MatchServiceName
)

// IDSelector chooses which order identifier a family's update operation expects.
type IDSelector int

const (
	// SelectInternalID passes the authoritative backend id.
	SelectInternalID IDSelector = iota
	// SelectDisplayID passes the display id untouched, or the internal id when
	// the order has none.
	SelectDisplayID
	// SelectDisplayIDStripped passes the display id without its family prefix,
	// or the internal id when the order has no display id.
	SelectDisplayIDStripped
	// SelectSubmissionID passes the submission id, falling back to the internal id.
	SelectSubmissionID
)

// Ref carries the order attributes used for family resolution and id selection.
type Ref struct {
	DisplayID    string
	InternalID   string
	SubmissionID string
	ServiceName  string
}

// Match describes a single predicate in the dispatch table.
type Match struct {
	Kind    MatchKind
	Pattern string
}

// Entry binds a predicate to the family, backend operation and status vocabulary it selects.
type Entry struct {
	Family    Family
	Label     string
	Match     Match
	Operation string
	ID        IDSelector
	Statuses  []string
}

// SelectID returns the identifier the entry's update operation expects for ref.
// A selector whose field is empty falls back to the internal id.
func (e Entry) SelectID(ref Ref) string {
	var id string
	switch e.ID {
	case SelectDisplayID:
		id = strings.TrimSpace(ref.DisplayID)
	case SelectDisplayIDStripped:
		id = stripDisplayPrefix(ref.DisplayID, e.Match)
	case SelectSubmissionID:
		id = strings.TrimSpace(ref.SubmissionID)
	}
	if id == "" {
		id = strings.TrimSpace(ref.InternalID)
	}
	return id
}

// Allows reports whether status belongs to the entry's vocabulary.
func (e Entry) Allows(status string) bool {
	status = strings.TrimSpace(status)
	for _, candidate := range e.Statuses {
		if strings.EqualFold(candidate, status) {
			return true
		}
	}
	return false
}

// Canonical returns the vocabulary spelling of status, or status itself when unknown.
func (e Entry) Canonical(status string) string {
	status = strings.TrimSpace(status)
	for _, candidate := range e.Statuses {
		if strings.EqualFold(candidate, status) {
			return candidate
		}
	}
	return status
}

// Registry is an ordered dispatch table. The first matching entry wins.
type Registry struct {
	entries  []Entry
	fallback Entry
	byFamily map[Family]Entry
}

// New builds a registry evaluating entries in the given order, using fallback when nothing matches.
func New(entries []Entry, fallback Entry) *Registry {
	r := &Registry{
		entries:  make([]Entry, 0, len(entries)),
		fallback: fallback,
		byFamily: make(map[Family]Entry, len(entries)+1),
	}
	for _, entry := range entries {
		entry.Match.Pattern = normalize(entry.Match.Pattern)
		r.entries = append(r.entries, entry)
		if _, exists := r.byFamily[entry.Family]; !exists {
			r.byFamily[entry.Family] = entry
		}
	}
	r.byFamily[fallback.Family] = fallback
	return r
}

// Resolve returns the entry owning ref. It never fails: unmatched refs resolve to the fallback.
func (r *Registry) Resolve(ref Ref) Entry {
	display := normalize(ref.DisplayID)
	name := normalize(ref.ServiceName)

	for _, entry := range r.entries {
		if entry.Match.Kind == MatchDisplayPrefix && display != "" && strings.HasPrefix(display, entry.Match.Pattern) {
			return entry
		}
	}
	for _, entry := range r.entries {
		if entry.Match.Kind == MatchServiceName && name != "" && strings.Contains(name, entry.Match.Pattern) {
			return entry
		}
	}
	return r.fallback
}

// Lookup returns the first entry registered for family.
func (r *Registry) Lookup(family Family) (Entry, bool) {
	entry, ok := r.byFamily[family]
	return entry, ok
}

// Statuses returns a copy of the ordered vocabulary for family.
func (r *Registry) Statuses(family Family) []string {
	entry, ok := r.byFamily[family]
	if !ok {
		return nil
	}
	return append([]string(nil), entry.Statuses...)
}

// Entries returns the dispatch table in evaluation order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Fallback returns the entry used when no predicate matches.
func (r *Registry) Fallback() Entry {
	return r.fallback
}

// ShadowError reports a predicate that can never win because an earlier, more generic one matches first.
type ShadowError struct {
	Shadowed Entry
	By       Entry
}

// Error implements the error interface.
func (e *ShadowError) Error() string {
	return fmt.Sprintf("servicetype: %s pattern %q is shadowed by earlier %s pattern %q",
		e.Shadowed.Family, e.Shadowed.Match.Pattern, e.By.Family, e.By.Match.Pattern)
}

// Validate checks the table for entries that are unreachable because of ordering.
func (r *Registry) Validate() error {
	for i, later := range r.entries {
		for _, earlier := range r.entries[:i] {
			if earlier.Match.Kind != later.Match.Kind {
				continue
			}
			switch later.Match.Kind {
			case MatchDisplayPrefix:
				if strings.HasPrefix(later.Match.Pattern, earlier.Match.Pattern) {
					return &ShadowError{Shadowed: later, By: earlier}
				}
			case MatchServiceName:
				if strings.Contains(later.Match.Pattern, earlier.Match.Pattern) {
					return &ShadowError{Shadowed: later, By: earlier}
				}
			}
		}
	}
	return nil
}

// normalize case-folds value. Casers keep state, so each call builds its own.
func normalize(value string) string {
	return cases.Fold().String(strings.TrimSpace(value))
}

func stripDisplayPrefix(displayID string, match Match) string {
	displayID = strings.TrimSpace(displayID)
	if match.Kind == MatchDisplayPrefix && len(displayID) >= len(match.Pattern) &&
		strings.EqualFold(displayID[:len(match.Pattern)], match.Pattern) {
		return displayID[len(match.Pattern):]
	}
	if idx := strings.LastIndex(displayID, "-"); idx >= 0 {
		return displayID[idx+1:]
	}
	return displayID
}
