package dependency

// Set is an ordered collection of dependencies, unique by name. Iteration
// follows insertion order. The zero value is an empty set ready to use.
type Set[T Dependency] struct {
	names []string
	items map[string]T
}

// NewSet returns a set holding deps, keeping the first of any duplicates.
func NewSet[T Dependency](deps ...T) *Set[T] {
	s := &Set[T]{items: make(map[string]T, len(deps))}
	for _, d := range deps {
		s.Add(d)
	}
	return s
}

// Add inserts d unless its name is already present. It reports whether d
// was added.
func (s *Set[T]) Add(d T) bool {
	name := d.Name()
	if _, ok := s.items[name]; ok {
		return false
	}
	s.init()
	s.names = append(s.names, name)
	s.items[name] = d
	return true
}

// Put inserts d, replacing an entry with the same name in place.
func (s *Set[T]) Put(d T) {
	name := d.Name()
	if _, ok := s.items[name]; !ok {
		s.init()
		s.names = append(s.names, name)
	}
	s.items[name] = d
}

func (s *Set[T]) init() {
	if s.items == nil {
		s.items = make(map[string]T)
	}
}

// FindByName returns the entry named name.
func (s *Set[T]) FindByName(name string) (T, bool) {
	d, ok := s.items[name]
	return d, ok
}

// ForEach calls fn for every entry in insertion order.
func (s *Set[T]) ForEach(fn func(T)) {
	for _, name := range s.names {
		fn(s.items[name])
	}
}

// Items returns the entries in insertion order.
func (s *Set[T]) Items() []T {
	out := make([]T, 0, len(s.names))
	s.ForEach(func(d T) { out = append(out, d) })
	return out
}

// Names returns the entry names in insertion order.
func (s *Set[T]) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of entries.
func (s *Set[T]) Len() int { return len(s.names) }

// Merge returns a new set with a's entries overlaid by b's. On a name
// collision b's entry wins and a's position is kept.
func Merge[T Dependency](a, b *Set[T]) *Set[T] {
	out := NewSet[T]()
	for _, s := range []*Set[T]{a, b} {
		if s == nil {
			continue
		}
		s.ForEach(out.Put)
	}
	return out
}

// Flatten collects a resolved graph depth-first, each dependency once.
func Flatten(roots []*Resolved) *Set[*Resolved] {
	out := NewSet[*Resolved]()
	var visit func(r *Resolved)
	visit = func(r *Resolved) {
		if !out.Add(r) {
			return
		}
		for _, c := range r.children {
			visit(c)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return out
}
