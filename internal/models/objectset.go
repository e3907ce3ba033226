package models

import (
	"sort"
	"strings"
)

// ObjectSet is the set of unique labels seen in a single frame.
// The zero value is an empty set ready to use.
type ObjectSet struct {
	labels map[string]struct{}
}

func NewObjectSet(labels ...string) ObjectSet {
	s := ObjectSet{labels: make(map[string]struct{}, len(labels))}
	for _, l := range labels {
		s.Add(l)
	}
	return s
}

func (s *ObjectSet) Add(label string) {
	if s.labels == nil {
		s.labels = make(map[string]struct{})
	}
	s.labels[label] = struct{}{}
}

func (s ObjectSet) Has(label string) bool {
	_, ok := s.labels[label]
	return ok
}

func (s ObjectSet) Len() int {
	return len(s.labels)
}

// Equal reports set equality; insertion order is irrelevant.
func (s ObjectSet) Equal(other ObjectSet) bool {
	if len(s.labels) != len(other.labels) {
		return false
	}
	for l := range s.labels {
		if _, ok := other.labels[l]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the labels in lexical order.
func (s ObjectSet) Sorted() []string {
	out := make([]string, 0, len(s.labels))
	for l := range s.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (s ObjectSet) Clone() ObjectSet {
	return NewObjectSet(s.Sorted()...)
}

func (s ObjectSet) String() string {
	return "{" + strings.Join(s.Sorted(), ", ") + "}"
}
