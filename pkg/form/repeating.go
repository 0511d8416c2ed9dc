package form

import (
	"fmt"

	"github.com/aretw0/formtree/internal/reactive"
	"github.com/aretw0/formtree/pkg/domain"
)

// RepeatingGroup owns the occurrences of a repeating group item. Each occurrence is
// a Group with its own isolated scope.
type RepeatingGroup struct {
	nodeBase
	instances  *keyedList[*Group]
	nextID     int
	touched    *reactive.Signal[bool]
	structural domain.IssueList

	minOccurs *reactive.Computed[int]
	maxOccurs *reactive.Computed[int]
}

func newRepeatingGroup(f *Form, item *domain.Item, key string, parent Node, outer *Scope, seeds []domain.ResponseItem, hydrate bool) *RepeatingGroup {
	w := &RepeatingGroup{nodeBase: newBase(f, item, key, parent, outer, false)}
	w.instances = newKeyedList[*Group](f.rt)
	w.touched = reactive.NewSignal(f.rt, false, nil)
	w.setup(w, SlotEnableWhen, SlotMinOccurs, SlotMaxOccurs)
	w.hidden.Dispose()
	w.hidden = reactive.NewComputed(f.rt, w.computeHidden)
	w.minOccurs = reactive.NewComputed(f.rt, func() int { return minOccurs(w.exprs, item) })
	w.maxOccurs = reactive.NewComputed(f.rt, func() int { return maxOccurs(w.exprs, item) })
	w.structural = placementIssues(&w.nodeBase)

	for i := range seeds {
		w.newInstance(&seeds[i], hydrate)
	}
	if len(seeds) == 0 {
		n := 1
		if m, ok := extensionInt(item, domain.ExtMinOccurs); ok && m > n {
			n = m
		}
		for range n {
			w.newInstance(nil, hydrate)
		}
	}
	return w
}

// computeHidden extends the standard rule: a wrapper whose occurrences are all
// hidden is hidden too.
func (w *RepeatingGroup) computeHidden() bool {
	if w.item.Hidden() || !w.enabled.Get() {
		return true
	}
	instances := w.instances.items()
	if len(instances) == 0 {
		return false
	}
	for _, inst := range instances {
		if !inst.Hidden() {
			return false
		}
	}
	return true
}

func (w *RepeatingGroup) newInstance(seed *domain.ResponseItem, hydrate bool) *Group {
	key := fmt.Sprintf("%s[%d]", w.key, w.nextID)
	w.nextID++
	g := newGroup(w.form, w.item, key, w, w.scope, seed, hydrate, true)
	w.instances.append(key, g)
	return g
}

// Kind implements Node.
func (w *RepeatingGroup) Kind() Kind { return KindRepeatingGroup }

// Instances returns the occurrences in order.
func (w *RepeatingGroup) Instances() []*Group { return w.instances.items() }

// Children implements Node.
func (w *RepeatingGroup) Children() []Node {
	instances := w.instances.items()
	out := make([]Node, len(instances))
	for i, inst := range instances {
		out[i] = inst
	}
	return out
}

// MinOccurs returns the effective minimum occurrence count.
func (w *RepeatingGroup) MinOccurs() int { return w.minOccurs.Get() }

// MaxOccurs returns the effective maximum occurrence count.
func (w *RepeatingGroup) MaxOccurs() int { return w.maxOccurs.Get() }

// CanAdd reports whether AddNode would add an occurrence.
func (w *RepeatingGroup) CanAdd() bool {
	return !w.disposed && !w.ReadOnly() && w.instances.len() < w.MaxOccurs()
}

// CanRemove reports whether RemoveNode would remove an occurrence.
func (w *RepeatingGroup) CanRemove() bool {
	return !w.disposed && !w.ReadOnly() && w.instances.len() > w.MinOccurs()
}

// AddNode appends an empty occurrence. It returns nil when at capacity.
func (w *RepeatingGroup) AddNode() *Group {
	if w.form.alive() != nil || !w.CanAdd() {
		return nil
	}
	var g *Group
	w.form.rt.Batch(func() {
		g = w.newInstance(nil, false)
		w.touched.Set(true)
		w.form.activatePending()
	})
	w.form.logger.Debug("occurrence added", "link_id", w.LinkID(), "node_key", g.Key())
	return g
}

// RemoveNode removes an occurrence. It reports false when at the floor.
func (w *RepeatingGroup) RemoveNode(g *Group) bool {
	if w.form.alive() != nil || g == nil || !w.CanRemove() {
		return false
	}
	removed := false
	w.form.rt.Batch(func() {
		if _, removed = w.instances.remove(g.key); removed {
			g.Dispose()
			w.touched.Set(true)
		}
	})
	return removed
}

// Dirty implements Node.
func (w *RepeatingGroup) Dirty() bool {
	if w.touched.Get() {
		return true
	}
	for _, inst := range w.instances.items() {
		if inst.Dirty() {
			return true
		}
	}
	return false
}

func (w *RepeatingGroup) snapshot() []any {
	var out []any
	for _, inst := range w.instances.items() {
		out = append(out, inst.snapshot()...)
	}
	return out
}

// fragments flattens the occurrences into sibling items; empty occurrences are pruned.
func (w *RepeatingGroup) fragments() []domain.ResponseItem {
	if !w.IsEnabled() {
		return nil
	}
	var out []domain.ResponseItem
	for _, inst := range w.instances.items() {
		out = append(out, inst.fragments()...)
	}
	return out
}

// Dispose implements Node.
func (w *RepeatingGroup) Dispose() {
	if w.disposed {
		return
	}
	for _, inst := range w.instances.peekItems() {
		inst.Dispose()
	}
	w.minOccurs.Dispose()
	w.maxOccurs.Dispose()
	w.release()
}
