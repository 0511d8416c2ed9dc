package graph

import "github.com/aretw0/formtree/pkg/form"

// OverlayFromForm collects answered, disabled and invalid linkIds from a live form.
func OverlayFromForm(f *form.Form) *GraphOverlay {
	o := &GraphOverlay{}
	f.Walk(func(n form.Node) bool {
		if !n.IsEnabled() {
			o.Disabled = append(o.Disabled, n.LinkID())
			return true
		}
		if q, ok := n.(*form.Question); ok {
			if len(q.Values()) > 0 {
				o.Answered = append(o.Answered, n.LinkID())
			}
			if q.HasErrors() {
				o.Invalid = append(o.Invalid, n.LinkID())
			}
		}
		return true
	})
	return o
}
