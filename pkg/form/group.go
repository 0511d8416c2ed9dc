package form

import (
	"github.com/aretw0/formtree/pkg/domain"
)

// Group is a plain container of child nodes. Repeat occurrences are groups owned by
// a RepeatingGroup, each with an isolated scope.
type Group struct {
	nodeBase
	children   *keyedList[Node]
	structural domain.IssueList
}

func newGroup(f *Form, item *domain.Item, key string, parent Node, outer *Scope, seed *domain.ResponseItem, hydrate, instance bool) *Group {
	g := &Group{nodeBase: newBase(f, item, key, parent, outer, instance)}
	g.instance = instance
	g.children = newKeyedList[Node](f.rt)
	if instance {
		g.setup(g, SlotVariable)
	} else {
		g.setup(g, SlotVariable, SlotEnableWhen)
		g.structural = placementIssues(&g.nodeBase)
	}
	var items []domain.ResponseItem
	if seed != nil {
		items = seed.Item
	}
	f.buildNodes(item.Item, g, g.scope, key, items, hydrate, g.children)
	return g
}

// Kind implements Node.
func (g *Group) Kind() Kind { return KindGroup }

// Children implements Node.
func (g *Group) Children() []Node { return g.children.items() }

// Dirty implements Node.
func (g *Group) Dirty() bool { return anyDirty(g.children.items()) }

func (g *Group) snapshot() []any {
	return []any{groupSnapshot(g)}
}

func (g *Group) fragments() []domain.ResponseItem {
	if !g.IsEnabled() {
		return nil
	}
	children := buildFragments(g.children.items())
	if len(children) == 0 {
		return nil
	}
	return []domain.ResponseItem{{LinkID: g.LinkID(), Text: g.item.Text, Item: children}}
}

// Dispose implements Node.
func (g *Group) Dispose() {
	if g.disposed {
		return
	}
	for _, child := range g.children.peekItems() {
		child.Dispose()
	}
	g.release()
}

// Display is a text-only node.
type Display struct {
	nodeBase
}

func newDisplay(f *Form, item *domain.Item, key string, parent Node, outer *Scope) *Display {
	d := &Display{nodeBase: newBase(f, item, key, parent, outer, false)}
	d.setup(d, SlotEnableWhen)
	return d
}

// Kind implements Node.
func (d *Display) Kind() Kind { return KindDisplay }

// Children implements Node.
func (d *Display) Children() []Node { return nil }

// Dirty implements Node.
func (d *Display) Dirty() bool { return false }

func (d *Display) snapshot() []any {
	m := map[string]any{"linkId": d.LinkID()}
	if d.item.Text != "" {
		m["text"] = d.item.Text
	}
	return []any{m}
}

// fragments yields the display's linkId and text. It carries no content, so
// buildFragments never lets it reach a response.
func (d *Display) fragments() []domain.ResponseItem {
	if !d.IsEnabled() {
		return nil
	}
	return []domain.ResponseItem{{LinkID: d.LinkID(), Text: d.item.Text}}
}

func (d *Display) validate() domain.IssueList { return nil }

// Dispose implements Node.
func (d *Display) Dispose() { d.release() }
