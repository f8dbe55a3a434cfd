package realtime

import (
	"fmt"
	"strings"
)

// Predicate is an optional row filter of the form "field = value".
// The zero Predicate matches every row.
type Predicate struct {
	Field string
	Value string
}

// ParsePredicate parses "field = value". An empty string yields the
// match-all predicate.
func ParsePredicate(s string) (Predicate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Predicate{}, nil
	}
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return Predicate{}, fmt.Errorf("invalid predicate %q: want \"field = value\"", s)
	}
	field := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if field == "" || value == "" {
		return Predicate{}, fmt.Errorf("invalid predicate %q: empty field or value", s)
	}
	return Predicate{Field: field, Value: value}, nil
}

// Matches reports whether the row satisfies the predicate.
func (p Predicate) Matches(row map[string]any) bool {
	if p.Field == "" {
		return true
	}
	v, ok := row[p.Field]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == p.Value
}

// String renders the predicate back to its wire form.
func (p Predicate) String() string {
	if p.Field == "" {
		return ""
	}
	return p.Field + " = " + p.Value
}
