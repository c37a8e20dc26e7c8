package identity

import "strings"

// Index resolves aliases back to the items they identify.
//
// Exact aliases take precedence over derived numeric keys, so "SUB-88" finds the
// order whose submission id is "SUB-88" before an order whose internal id is 88.
// On collisions within the same tier the earliest item wins.
type Index[T any] struct {
	items   []T
	exact   map[string]int
	derived map[string]int
}

// NewIndex builds an index over items using subject to extract aliases.
func NewIndex[T any](items []T, subject func(T) Subject) *Index[T] {
	idx := &Index[T]{
		items:   append([]T(nil), items...),
		exact:   make(map[string]int, len(items)*3),
		derived: make(map[string]int, len(items)*2),
	}
	for i, item := range idx.items {
		for _, alias := range Aliases(subject(item)) {
			keys := Keys(alias)
			if len(keys) == 0 {
				continue
			}
			if _, taken := idx.exact[keys[0]]; !taken {
				idx.exact[keys[0]] = i
			}
			for _, key := range keys[1:] {
				if _, taken := idx.derived[key]; !taken {
					idx.derived[key] = i
				}
			}
		}
	}
	return idx
}

// Resolve returns the item identified by alias.
func (idx *Index[T]) Resolve(alias string) (T, bool) {
	var zero T
	if idx == nil {
		return zero, false
	}
	keys := Keys(alias)
	if len(keys) == 0 {
		return zero, false
	}
	if i, ok := idx.exact[keys[0]]; ok {
		return idx.items[i], true
	}
	for _, key := range keys {
		if i, ok := idx.exact[key]; ok {
			return idx.items[i], true
		}
		if i, ok := idx.derived[key]; ok {
			return idx.items[i], true
		}
	}
	return zero, false
}

// Len returns the number of indexed items.
func (idx *Index[T]) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.items)
}

// Normalize returns the canonical comparison form of alias.
func Normalize(alias string) string {
	keys := Keys(alias)
	if len(keys) == 0 {
		return ""
	}
	return strings.ToUpper(keys[len(keys)-1])
}
