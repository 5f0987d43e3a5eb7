package recipe

import "strings"

// IngredientSet is an ordered set of ingredient names. Names are compared
// exactly, so "Egg" and "egg" are different entries.
type IngredientSet struct {
	names []string
	index map[string]struct{}
}

// NewIngredientSet creates a set holding names in order, skipping duplicates.
func NewIngredientSet(names ...string) *IngredientSet {
	s := &IngredientSet{index: make(map[string]struct{})}
	s.Merge(names)
	return s
}

// Add trims name and appends it. Blank names and exact duplicates are
// rejected.
func (s *IngredientSet) Add(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrBlankIngredient
	}
	if s.Contains(name) {
		return ErrDuplicateIngredient
	}
	s.insert(name)
	return nil
}

// Remove deletes name and reports whether it was present.
func (s *IngredientSet) Remove(name string) bool {
	if !s.Contains(name) {
		return false
	}
	delete(s.index, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
	return true
}

// Merge adds every name not yet present, keeping first-occurrence order, and
// returns the names that were added. Merging the same batch twice is the
// same as merging it once.
func (s *IngredientSet) Merge(names []string) []string {
	var added []string
	for _, name := range names {
		if strings.TrimSpace(name) == "" || s.Contains(name) {
			continue
		}
		s.insert(name)
		added = append(added, name)
	}
	return added
}

// Contains reports whether name is in the set.
func (s *IngredientSet) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns a copy of the names in insertion order.
func (s *IngredientSet) Names() []string {
	return append([]string{}, s.names...)
}

// Len returns the number of names.
func (s *IngredientSet) Len() int {
	return len(s.names)
}

func (s *IngredientSet) insert(name string) {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	s.index[name] = struct{}{}
	s.names = append(s.names, name)
}
