package utils

import "sort"

// OrderedSet is a string set that remembers first-insertion order.
// It is not safe for concurrent use; the fetch loop owns it alone.
type OrderedSet struct {
	seen  map[string]struct{}
	order []string
}

// NewOrderedSet creates an empty OrderedSet.
func NewOrderedSet() *OrderedSet {
	return &OrderedSet{seen: make(map[string]struct{})}
}

// Add returns true if s was newly added, false if already present.
func (o *OrderedSet) Add(s string) bool {
	if _, exists := o.seen[s]; exists {
		return false
	}
	o.seen[s] = struct{}{}
	o.order = append(o.order, s)
	return true
}

// Contains returns true if s has been added.
func (o *OrderedSet) Contains(s string) bool {
	_, exists := o.seen[s]
	return exists
}

// Size returns the number of distinct values.
func (o *OrderedSet) Size() int {
	return len(o.order)
}

// Values returns the members in first-insertion order.
func (o *OrderedSet) Values() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// Sorted returns the members in lexical order.
func (o *OrderedSet) Sorted() []string {
	out := o.Values()
	sort.Strings(out)
	return out
}
