package form

import (
	"github.com/aretw0/formtree/internal/reactive"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/fhirpath"
)

// Kind is the node variant.
type Kind int

const (
	KindDisplay Kind = iota
	KindQuestion
	KindGroup
	KindRepeatingGroup
)

func (k Kind) String() string {
	switch k {
	case KindDisplay:
		return "display"
	case KindQuestion:
		return "question"
	case KindGroup:
		return "group"
	case KindRepeatingGroup:
		return "repeating-group"
	default:
		return "unknown"
	}
}

// Node is the runtime counterpart of a questionnaire item.
//
// All state accessors are reactive: reading them inside a computed value or effect
// records a dependency, and they always reflect every command issued so far.
type Node interface {
	// Key is unique within the tree and stable across rebuilds of the same tree.
	Key() string
	LinkID() string
	Item() *domain.Item
	Kind() Kind
	Text() string
	// Parent returns the enclosing node, or nil at the top level.
	Parent() Node
	Scope() *Scope
	Expressions() *Registry

	IsEnabled() bool
	Hidden() bool
	ReadOnly() bool
	// Dirty reports whether a user command touched the node or a descendant.
	Dirty() bool

	// Issues returns the issues of the node and its descendants.
	Issues() domain.IssueList
	HasErrors() bool
	// Children returns the direct child nodes (for questions, those of every answer).
	Children() []Node

	// Dispose severs every subscription of the node and its descendants.
	Dispose()

	base() *nodeBase
	snapshot() []any
	fragments() []domain.ResponseItem
	validate() domain.IssueList
}

// nodeBase carries the state shared by every variant.
type nodeBase struct {
	self   Node
	form   *Form
	item   *domain.Item
	key    string
	parent Node
	scope  *Scope
	exprs  *Registry
	// instance marks a repeat occurrence, whose enablement is owned by its wrapper.
	instance bool

	enabled  *reactive.Computed[bool]
	hidden   *reactive.Computed[bool]
	readOnly *reactive.Computed[bool]
	issues   *reactive.Computed[domain.IssueList]

	disposed bool
}

func newBase(f *Form, item *domain.Item, key string, parent Node, outer *Scope, isolated bool) nodeBase {
	return nodeBase{
		form:   f,
		item:   item,
		key:    key,
		parent: parent,
		scope:  outer.Extend(isolated),
	}
}

// setup wires the shared reactive fields, declares slots and registers the node.
func (b *nodeBase) setup(self Node, kinds ...SlotKind) {
	b.self = self
	env := &environment{
		form:    b.form,
		scope:   b.scope,
		context: func() fhirpath.Collection { return fhirpath.Collection(self.snapshot()) },
		qitem:   fhirpath.Collection{itemSnapshot(b.item)},
	}
	b.exprs = newRegistry(b.form, b.item.LinkID, env)
	b.exprs.declareSlots(b.item, kinds...)
	b.exprs.publish(b.scope)

	rt := b.form.rt
	b.enabled = reactive.NewComputed(rt, b.computeEnabled)
	b.hidden = reactive.NewComputed(rt, func() bool {
		return b.item.Hidden() || !b.enabled.Get()
	})
	b.readOnly = reactive.NewComputed(rt, func() bool {
		if b.form.readOnly || b.item.ReadOnly {
			return true
		}
		return b.parent != nil && b.parent.ReadOnly()
	})
	b.issues = reactive.NewComputed(rt, func() domain.IssueList {
		if b.disposed || b.readOnly.Get() || !b.enabled.Get() {
			return nil
		}
		return self.validate()
	})
	b.scope.register(self)
}

func (b *nodeBase) computeEnabled() bool {
	if b.parent != nil && !b.parent.IsEnabled() {
		return false
	}
	if b.instance {
		return true
	}
	if slot := b.exprs.Slot(SlotEnableWhen); slot != nil {
		out, err := slot.Value()
		if err != nil || len(out) == 0 {
			return false
		}
		v, ok := out[0].(bool)
		return ok && v
	}
	if len(b.item.EnableWhen) > 0 {
		return evaluateEnableWhen(b.scope, b.item)
	}
	return true
}

func (b *nodeBase) Key() string            { return b.key }
func (b *nodeBase) LinkID() string         { return b.item.LinkID }
func (b *nodeBase) Item() *domain.Item     { return b.item }
func (b *nodeBase) Text() string           { return b.item.Text }
func (b *nodeBase) Parent() Node           { return b.parent }
func (b *nodeBase) Scope() *Scope          { return b.scope }
func (b *nodeBase) Expressions() *Registry { return b.exprs }
func (b *nodeBase) IsEnabled() bool        { return b.enabled.Get() }
func (b *nodeBase) Hidden() bool           { return b.hidden.Get() }
func (b *nodeBase) ReadOnly() bool         { return b.readOnly.Get() }
func (b *nodeBase) base() *nodeBase        { return b }

// Issues returns the node's own issues followed by those of its descendants.
func (b *nodeBase) Issues() domain.IssueList {
	out := append(domain.IssueList(nil), b.issues.Get()...)
	for _, child := range b.self.Children() {
		out = append(out, child.Issues()...)
	}
	return out
}

func (b *nodeBase) HasErrors() bool {
	return len(b.Issues()) > 0
}

// release disposes the shared reactive fields and unregisters the node.
func (b *nodeBase) release() {
	if b.disposed {
		return
	}
	b.disposed = true
	b.enabled.Dispose()
	b.hidden.Dispose()
	b.readOnly.Dispose()
	b.issues.Dispose()
	b.exprs.dispose()
	b.scope.unregister(b.self)
}

func (b *nodeBase) issue(code domain.IssueCode, answer int, msg string) domain.Issue {
	return domain.Issue{
		Code:        code,
		Message:     msg,
		LinkID:      b.item.LinkID,
		NodeKey:     b.key,
		AnswerIndex: answer,
	}
}

func childKey(parentKey, linkID string) string {
	if parentKey == "" {
		return linkID
	}
	return parentKey + "/" + linkID
}

func anyDirty(nodes []Node) bool {
	for _, n := range nodes {
		if n.Dirty() {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants depth-first until fn returns false.
func Walk(n Node, fn func(Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, child := range n.Children() {
		if !Walk(child, fn) {
			return false
		}
	}
	return true
}

// MustQuestion asserts that n is a question. It panics otherwise.
func MustQuestion(n Node) *Question {
	q, ok := n.(*Question)
	if !ok {
		panic(domain.ErrNotQuestion)
	}
	return q
}
