package models

import "sort"

// Tag is a food category a subscriber can follow.
// The catalog of tags is fixed for the lifetime of a session.
type Tag struct {
	// ID is the stable identifier sent to the backend (e.g., "bell_pepper").
	ID string

	// DisplayName is the human-readable label (e.g., "Bell Pepper").
	DisplayName string
}

// TagSet is an unordered set of tag ids.
type TagSet map[string]struct{}

// NewTagSet builds a set from ids, dropping duplicates and empty strings.
func NewTagSet(ids ...string) TagSet {
	s := make(TagSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Has reports whether id is in the set.
func (s TagSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Toggle adds id if absent and removes it if present.
// It reports whether id is selected afterwards.
func (s TagSet) Toggle(id string) bool {
	if s.Has(id) {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// Len returns the number of ids.
func (s TagSet) Len() int { return len(s) }

// Sorted returns the ids in lexical order, never nil.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s TagSet) Clone() TagSet {
	out := make(TagSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same ids.
func (s TagSet) Equal(other TagSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}
