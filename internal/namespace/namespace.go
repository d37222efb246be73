// Package namespace holds the ordered binding table shared by all cells and
// the scanners that discover which names a snippet declares.
package namespace

// Binding is one name/value pair.
type Binding[V any] struct {
	Name  string
	Value V
}

// Namespace is an ordered binding table. Iteration follows first-declaration
// order; overwriting a name keeps its position. A Namespace is not safe for
// concurrent use; its owning kernel serializes access.
type Namespace[V any] struct {
	names  []string
	values map[string]V
}

// New creates an empty namespace.
func New[V any]() *Namespace[V] {
	return &Namespace[V]{values: make(map[string]V)}
}

// Get returns the value bound to name.
func (n *Namespace[V]) Get(name string) (V, bool) {
	v, ok := n.values[name]
	return v, ok
}

// Has reports whether name is bound.
func (n *Namespace[V]) Has(name string) bool {
	_, ok := n.values[name]
	return ok
}

// Set binds name to v, overwriting any existing binding.
func (n *Namespace[V]) Set(name string, v V) {
	if _, ok := n.values[name]; !ok {
		n.names = append(n.names, name)
	}
	n.values[name] = v
}

// Merge binds every entry in order. Later entries win.
func (n *Namespace[V]) Merge(bindings []Binding[V]) {
	for _, b := range bindings {
		n.Set(b.Name, b.Value)
	}
}

// Names returns the bound names in order.
func (n *Namespace[V]) Names() []string {
	out := make([]string, len(n.names))
	copy(out, n.names)
	return out
}

// Values returns the bound values in the same order as Names.
func (n *Namespace[V]) Values() []V {
	out := make([]V, len(n.names))
	for i, name := range n.names {
		out[i] = n.values[name]
	}
	return out
}

// Bindings returns every binding in order.
func (n *Namespace[V]) Bindings() []Binding[V] {
	out := make([]Binding[V], len(n.names))
	for i, name := range n.names {
		out[i] = Binding[V]{Name: name, Value: n.values[name]}
	}
	return out
}

// Len returns the number of bindings.
func (n *Namespace[V]) Len() int {
	return len(n.names)
}

// Clear removes every binding.
func (n *Namespace[V]) Clear() {
	n.names = nil
	n.values = make(map[string]V)
}
