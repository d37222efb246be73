package namespace

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestNamespaceOrderAndOverwrite(t *testing.T) {
	ns := New[int]()
	assert.Equal(t, 0, ns.Len())

	ns.Set("b", 1)
	ns.Set("a", 2)
	ns.Set("b", 3)

	assert.Equal(t, []string{"b", "a"}, ns.Names(), "overwrite keeps first-declaration position")
	assert.Equal(t, []int{3, 2}, ns.Values())

	v, ok := ns.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = ns.Get("missing")
	assert.False(t, ok)
	assert.True(t, ns.Has("a"))
	assert.False(t, ns.Has("c"))
}

func TestNamespaceMerge(t *testing.T) {
	ns := New[string]()
	ns.Set("x", "old")
	ns.Merge([]Binding[string]{{Name: "y", Value: "1"}, {Name: "x", Value: "new"}})

	want := []Binding[string]{{Name: "x", Value: "new"}, {Name: "y", Value: "1"}}
	if diff := cmp.Diff(want, ns.Bindings()); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}

	ns.Merge(nil)
	assert.Equal(t, 2, ns.Len())
}

func TestNamespaceCopies(t *testing.T) {
	ns := New[int]()
	ns.Set("a", 1)
	names := ns.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"a"}, ns.Names())
}

func TestNamespaceClear(t *testing.T) {
	ns := New[int]()
	ns.Set("a", 1)
	ns.Clear()
	assert.Equal(t, 0, ns.Len())
	assert.False(t, ns.Has("a"))
	ns.Set("b", 2)
	assert.Equal(t, []string{"b"}, ns.Names())
}
