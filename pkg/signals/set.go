// Package signals carries the static knowledge the analysis core consults:
// generic-signal allowlists, known-vendor keyword tables, and the name
// category heuristics. All lookups are pure; the tables are immutable after
// construction and are passed explicitly into the components that need them
// so tests can substitute alternates.
package signals

import (
	"sort"
	"strings"
)

// Set is an immutable, case-insensitive membership set of signal names.
type Set struct {
	members map[string]struct{}
}

// NewSet builds a Set from the given names. Names are lowercased and
// trimmed; empties are dropped.
func NewSet(names ...string) *Set {
	members := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		members[n] = struct{}{}
	}
	return &Set{members: members}
}

// Contains reports whether name is in the set, case-insensitively.
func (s *Set) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.members)
}

// Names returns the members in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.members))
	for n := range s.members {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
