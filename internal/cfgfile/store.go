// Package cfgfile is an INI-style store of sections holding typed values.
package cfgfile

import (
	"math"
	"sort"
)

// GlobalSection holds properties that appear before any [section] header.
const GlobalSection = ""

type Section map[string]Value

// Clone returns a shallow copy; values are immutable.
func (s Section) Clone() Section {
	out := make(Section, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the section's keys in sorted order.
func (s Section) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store reads are not pure: Section materializes a missing section and Value
// stores the caller's default when the key is absent. HasSection and Peek do
// not touch the store. No locking; one goroutine owns it.
type Store struct {
	data map[string]Section
}

func New() *Store {
	return &Store{data: map[string]Section{}}
}

// SectionNames returns a sorted snapshot of every known section name,
// including GlobalSection when present.
func (s *Store) SectionNames() []string {
	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) HasSection(name string) bool {
	_, ok := s.data[name]
	return ok
}

func (s *Store) Len() int { return len(s.data) }

// Section returns the live section for name, inserting an empty one first
// if it is unknown.
func (s *Store) Section(name string) Section {
	sec, ok := s.data[name]
	if !ok {
		sec = Section{}
		s.data[name] = sec
	}
	return sec
}

// ReplaceSection overwrites (or creates) the section, discarding prior contents.
func (s *Store) ReplaceSection(name string, sec Section) {
	if sec == nil {
		sec = Section{}
	}
	s.data[name] = sec
}

func (s *Store) DeleteSection(name string) {
	delete(s.data, name)
}

// Value returns the stored value, or stores and returns def when the key is
// absent. The section is materialized either way.
func (s *Store) Value(section, key string, def Value) Value {
	sec := s.Section(section)
	if v, ok := sec[key]; ok {
		return v
	}
	sec[key] = def
	return def
}

func (s *Store) SetValue(section, key string, v Value) {
	s.Section(section)[key] = v
}

// Peek reads a value without materializing anything.
func (s *Store) Peek(section, key string) (Value, bool) {
	sec, ok := s.data[section]
	if !ok {
		return Value{}, false
	}
	v, ok := sec[key]
	return v, ok
}

// DeleteKey removes key from an existing section. It reports whether the key
// was present and never creates the section.
func (s *Store) DeleteKey(section, key string) bool {
	sec, ok := s.data[section]
	if !ok {
		return false
	}
	if _, ok := sec[key]; !ok {
		return false
	}
	delete(sec, key)
	return true
}

// String reads any tag as text.
func (s *Store) String(section, key, def string) string {
	return s.Value(section, key, String(def)).Text()
}

// Double reads a double; ints widen, other tags yield def.
func (s *Store) Double(section, key string, def float64) float64 {
	v := s.Value(section, key, Double(def))
	switch v.kind {
	case KindDouble:
		return v.f
	case KindInt:
		return float64(v.i)
	}
	return def
}

// Int reads an int; doubles truncate toward zero, other tags yield def.
func (s *Store) Int(section, key string, def int64) int64 {
	v := s.Value(section, key, Int(def))
	switch v.kind {
	case KindInt:
		return v.i
	case KindDouble:
		return truncDouble(v.f)
	}
	return def
}

func (s *Store) Bool(section, key string, def bool) bool {
	v := s.Value(section, key, Bool(def))
	if v.kind == KindBool {
		return v.b
	}
	return def
}

// Equal compares section names and per-section key/value mappings.
func (s *Store) Equal(o *Store) bool {
	if len(s.data) != len(o.data) {
		return false
	}
	for name, sec := range s.data {
		other, ok := o.data[name]
		if !ok || len(sec) != len(other) {
			return false
		}
		for k, v := range sec {
			ov, ok := other[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
	}
	return true
}

// truncDouble truncates toward zero and saturates: NaN is 0, out of range
// clamps to the int64 bounds.
func truncDouble(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}
