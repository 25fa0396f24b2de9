package asset

import (
	"strings"
)

// IDSet is an insertion-ordered set of ids. Its text form is the ids joined
// by commas; decoding drops blanks and duplicates.
type IDSet struct {
	order []string
	index map[string]struct{}
}

// NewIDSet returns a set holding ids in order.
func NewIDSet(ids ...string) *IDSet {
	s := &IDSet{index: make(map[string]struct{})}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// ParseIDSet decodes the text form.
func ParseIDSet(text string) *IDSet {
	s := NewIDSet()
	_ = s.UnmarshalText([]byte(text))
	return s
}

// Add inserts id and reports whether it was new.
func (s *IDSet) Add(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Has reports exact membership.
func (s *IDSet) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

// Remove deletes id and reports whether it was present.
func (s *IDSet) Remove(id string) bool {
	if !s.Has(id) {
		return false
	}
	delete(s.index, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// IDs returns a copy of the ids in insertion order.
func (s *IDSet) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of ids.
func (s *IDSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Clear empties the set.
func (s *IDSet) Clear() {
	s.order = nil
	s.index = make(map[string]struct{})
}

// String returns the text form.
func (s *IDSet) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(s.order, ",")
}

// MarshalText implements encoding.TextMarshaler.
func (s *IDSet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It replaces the content.
func (s *IDSet) UnmarshalText(text []byte) error {
	s.Clear()
	for _, id := range strings.Split(string(text), ",") {
		s.Add(id)
	}
	return nil
}
