package form

import (
	"slices"

	"github.com/aretw0/formtree/internal/reactive"
	"github.com/aretw0/formtree/pkg/fhirpath"
)

// VariableSource lazily produces the value of a scope variable.
type VariableSource func() (fhirpath.Collection, error)

// Scope is a lexical environment: local variable bindings, the nodes registered
// under it, and a parent link.
//
// Lookups walk outward through parents. An isolated scope (one per repeat
// occurrence) stops node registrations from propagating to its ancestors, so
// nothing declared inside one occurrence is visible to siblings or ancestors.
type Scope struct {
	rt       *reactive.Runtime
	parent   *Scope
	isolated bool
	vars     map[string]VariableSource
	nodes    map[string][]Node
	version  *reactive.Signal[int]
}

// NewScope creates a root scope.
func NewScope(rt *reactive.Runtime) *Scope {
	return &Scope{
		rt:      rt,
		vars:    make(map[string]VariableSource),
		nodes:   make(map[string][]Node),
		version: reactive.NewSignal(rt, 0, nil),
	}
}

// Extend creates a child scope.
func (s *Scope) Extend(isolated bool) *Scope {
	child := NewScope(s.rt)
	child.parent = s
	child.isolated = isolated
	return child
}

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Isolated reports whether the scope hides its registrations from ancestors.
func (s *Scope) Isolated() bool { return s.isolated }

// Define binds name in this scope, shadowing any outer binding.
func (s *Scope) Define(name string, src VariableSource) {
	s.vars[name] = src
}

// LookupVariable resolves name by walking outward. found is false when no scope binds
// the name; err reports a binding that exists but failed to evaluate.
func (s *Scope) LookupVariable(name string) (value fhirpath.Collection, found bool, err error) {
	for cur := s; cur != nil; cur = cur.parent {
		if src, ok := cur.vars[name]; ok {
			v, err := src()
			return v, true, err
		}
	}
	return nil, false, nil
}

// LookupNode returns the first node with linkID visible from this scope.
// The result is reactive: callers tracking it are invalidated when registrations change.
func (s *Scope) LookupNode(linkID string) Node {
	for cur := s; cur != nil; cur = cur.parent {
		cur.version.Get()
		if nodes := cur.nodes[linkID]; len(nodes) > 0 {
			return nodes[0]
		}
	}
	return nil
}

// register makes n visible in s and in every ancestor up to the nearest isolated scope.
func (s *Scope) register(n Node) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.nodes[n.LinkID()] = append(cur.nodes[n.LinkID()], n)
		cur.version.Update(func(v int) int { return v + 1 })
		if cur.isolated {
			return
		}
	}
}

func (s *Scope) unregister(n Node) {
	for cur := s; cur != nil; cur = cur.parent {
		list := cur.nodes[n.LinkID()]
		if i := slices.Index(list, n); i >= 0 {
			cur.nodes[n.LinkID()] = slices.Delete(slices.Clone(list), i, i+1)
			cur.version.Update(func(v int) int { return v + 1 })
		}
		if cur.isolated {
			return
		}
	}
}
