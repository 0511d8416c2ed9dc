package form

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/aretw0/formtree/internal/reactive"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/fhirpath"
	"github.com/aretw0/formtree/pkg/schema"
)

// Question is an answerable node. A non-repeating question always holds exactly one
// answer (possibly empty); a repeating one holds between zero and MaxOccurs answers.
type Question struct {
	nodeBase
	typ schema.Type

	answers *keyedList[*Answer]
	nextID  int
	touched *reactive.Signal[bool]
	// hydrated questions come from a seed response and skip initial values.
	hydrated bool

	minOccurs *reactive.Computed[int]
	maxOccurs *reactive.Computed[int]
	options   *reactive.Computed[OptionState]
	calc      *reactive.Effect
}

// Answer is one occurrence of a question's answer, with the child nodes nested under it.
type Answer struct {
	question *Question
	key      string
	value    *reactive.Signal[domain.Value]
	dirty    *reactive.Signal[bool]
	scope    *Scope
	children *keyedList[Node]
}

func newQuestion(f *Form, item *domain.Item, key string, parent Node, outer *Scope, seed *domain.ResponseItem, hydrate bool) *Question {
	q := &Question{nodeBase: newBase(f, item, key, parent, outer, false)}
	q.typ, _ = schema.ForItem(item)
	q.answers = newKeyedList[*Answer](f.rt)
	q.touched = reactive.NewSignal(f.rt, false, nil)
	q.hydrated = hydrate
	q.setup(q, SlotVariable, SlotEnableWhen, SlotCalculated, SlotInitial,
		SlotMinOccurs, SlotMaxOccurs, SlotMinValue, SlotMaxValue, SlotAnswerOptions)

	q.minOccurs = reactive.NewComputed(f.rt, func() int {
		n := minOccurs(q.exprs, item)
		if !item.Repeats {
			n = min(n, 1)
		}
		return n
	})
	q.maxOccurs = reactive.NewComputed(f.rt, func() int { return maxOccurs(q.exprs, item) })
	q.options = reactive.NewComputed(f.rt, q.computeOptions)

	if seed != nil {
		answers := seed.Answer
		if !item.Repeats && len(answers) > 1 {
			f.logger.Warn("extra answers dropped for non-repeating item", "link_id", item.LinkID, "count", len(answers))
			answers = answers[:1]
		}
		for i := range answers {
			v, err := q.coerce(answers[i].Value)
			if err != nil {
				f.logger.Warn("seed answer rejected", "link_id", item.LinkID, "err", err)
			}
			q.newAnswer(v, answers[i].Item, hydrate)
		}
	}
	if len(q.answers.peekItems()) == 0 {
		q.newAnswer(domain.Value{}, nil, hydrate)
	}
	f.enqueue(q.activate)
	return q
}

func (q *Question) newAnswer(v domain.Value, seed []domain.ResponseItem, hydrate bool) *Answer {
	q.nextID++
	key := fmt.Sprintf("%s#%d", q.key, q.nextID)
	a := &Answer{
		question: q,
		key:      key,
		value:    reactive.NewSignal(q.form.rt, v, valueEqual),
		dirty:    reactive.NewSignal(q.form.rt, false, nil),
		scope:    q.scope.Extend(q.item.Repeats),
		children: newKeyedList[Node](q.form.rt),
	}
	q.answers.append(key, a)
	q.form.buildNodes(q.item.Item, q, a.scope, key, seed, hydrate, a.children)
	return a
}

func valueEqual(a, b domain.Value) bool {
	return reflect.DeepEqual(a, b)
}

// activate runs once the surrounding tree exists: initial values, then the
// calculated-value effect.
func (q *Question) activate() {
	if q.disposed {
		return
	}
	if !q.hydrated {
		q.applyInitial()
	}
	if slot := q.exprs.Slot(SlotCalculated); slot != nil {
		q.calc = reactive.NewEffect(q.form.rt, func() { q.applyCalculated(slot) })
	}
}

func (q *Question) applyInitial() {
	var values []domain.Value
	if slot := q.exprs.Slot(SlotInitial); slot != nil {
		var out fhirpath.Collection
		var err error
		q.form.rt.Untracked(func() { out, err = slot.Value() })
		if err != nil {
			return
		}
		values = q.coerceAll(out)
	} else {
		for _, init := range q.item.Initial {
			if v, err := q.coerce(init.Value); err == nil && !v.IsZero() {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			for _, opt := range q.item.AnswerOption {
				if opt.InitialSelected {
					values = append(values, opt.Value)
				}
			}
		}
	}
	if len(values) > 0 {
		q.assign(values)
	}
}

func (q *Question) applyCalculated(slot *Slot) {
	out, err := slot.Value()
	if err != nil {
		return
	}
	q.form.rt.Untracked(func() { q.assign(q.coerceAll(out)) })
}

// assign replaces the answer values without marking them dirty.
func (q *Question) assign(values []domain.Value) {
	if !q.item.Repeats && len(values) > 1 {
		values = values[:1]
	}
	answers := q.answers.peekItems()
	if len(values) == 0 {
		for i, a := range answers {
			if i == 0 {
				a.value.Set(domain.Value{})
				continue
			}
			q.dropAnswer(a)
		}
		return
	}
	for i, v := range values {
		if i < len(answers) {
			answers[i].value.Set(v)
			continue
		}
		q.newAnswer(v, nil, false)
	}
	for _, a := range answers[min(len(values), len(answers)):] {
		q.dropAnswer(a)
	}
	q.form.activatePending()
}

func (q *Question) coerce(value any) (domain.Value, error) {
	if q.typ == nil {
		return domain.Value{}, fmt.Errorf("%w: %q", ErrUnsupportedType, q.item.Type)
	}
	return q.typ.Coerce(value)
}

// coerceItem converts an expression result item into an answer value.
func (q *Question) coerceItem(item any) (domain.Value, error) {
	v, err := q.coerce(item)
	if err == nil {
		return v, nil
	}
	if _, isMap := item.(map[string]any); !isMap {
		if s, ok := fhirpath.ToString(item); ok {
			if v, serr := q.coerce(s); serr == nil {
				return v, nil
			}
		}
	}
	return domain.Value{}, err
}

func (q *Question) coerceAll(out fhirpath.Collection) []domain.Value {
	values := make([]domain.Value, 0, len(out))
	for _, item := range out {
		v, err := q.coerceItem(item)
		if err != nil {
			q.form.logger.Warn("expression result rejected", "link_id", q.LinkID(), "node_key", q.key, "err", err)
			continue
		}
		values = append(values, v)
	}
	return values
}

// Kind implements Node.
func (q *Question) Kind() Kind { return KindQuestion }

// Type returns the answer type, or nil for unsupported item types.
func (q *Question) Type() schema.Type { return q.typ }

// Answers returns the answer occurrences in order.
func (q *Question) Answers() []*Answer { return q.answers.items() }

// Answer returns the occurrence at index, or nil.
func (q *Question) Answer(index int) *Answer {
	answers := q.answers.items()
	if index < 0 || index >= len(answers) {
		return nil
	}
	return answers[index]
}

// Value returns the first answer value.
func (q *Question) Value() domain.Value {
	if a := q.Answer(0); a != nil {
		return a.Value()
	}
	return domain.Value{}
}

// Values returns the non-empty answer values in order.
func (q *Question) Values() []domain.Value {
	var out []domain.Value
	for _, a := range q.answers.items() {
		if v := a.value.Get(); !schema.IsEmpty(v) {
			out = append(out, v)
		}
	}
	return out
}

// MinOccurs returns the effective minimum answer count.
func (q *Question) MinOccurs() int { return q.minOccurs.Get() }

// MaxOccurs returns the effective maximum answer count.
func (q *Question) MaxOccurs() int { return q.maxOccurs.Get() }

// CanAddAnswer reports whether AddAnswer would add an occurrence.
func (q *Question) CanAddAnswer() bool {
	return !q.disposed && !q.ReadOnly() && q.item.Repeats && q.answers.len() < q.MaxOccurs()
}

// CanRemoveAnswer reports whether RemoveAnswer would remove an occurrence.
func (q *Question) CanRemoveAnswer() bool {
	return !q.disposed && !q.ReadOnly() && q.item.Repeats && q.answers.len() > q.MinOccurs()
}

// SetAnswer coerces value and stores it as the answer at index.
// On error the question is left unchanged.
func (q *Question) SetAnswer(index int, value any) error {
	if err := q.form.alive(); err != nil {
		return err
	}
	answers := q.answers.peekItems()
	if index < 0 || index >= len(answers) {
		return fmt.Errorf("%w: %s[%d]", ErrAnswerIndex, q.LinkID(), index)
	}
	return answers[index].Set(value)
}

// AddAnswer appends an occurrence holding value (nil for empty).
// It returns nil without error when the question is at capacity.
func (q *Question) AddAnswer(value any) (*Answer, error) {
	if err := q.form.alive(); err != nil {
		return nil, err
	}
	if !q.CanAddAnswer() {
		return nil, nil
	}
	v, err := q.coerce(value)
	if err != nil {
		return nil, err
	}
	var a *Answer
	q.form.rt.Batch(func() {
		a = q.newAnswer(v, nil, false)
		a.dirty.Set(true)
		q.form.activatePending()
	})
	q.form.emitAnswer(q, len(q.answers.peekItems())-1, v)
	return a, nil
}

// RemoveAnswer removes an occurrence. It reports false when the question is at its floor.
func (q *Question) RemoveAnswer(a *Answer) bool {
	if q.form.alive() != nil || a == nil || a.question != q || !q.CanRemoveAnswer() {
		return false
	}
	if _, ok := q.answers.get(a.key); !ok {
		return false
	}
	q.form.rt.Batch(func() {
		q.dropAnswer(a)
		q.touched.Set(true)
	})
	return true
}

func (q *Question) dropAnswer(a *Answer) {
	if _, ok := q.answers.remove(a.key); !ok {
		return
	}
	for _, child := range a.children.clear() {
		child.Dispose()
	}
}

// Dirty implements Node.
func (q *Question) Dirty() bool {
	if q.touched.Get() {
		return true
	}
	for _, a := range q.answers.items() {
		if a.dirty.Get() || anyDirty(a.children.items()) {
			return true
		}
	}
	return false
}

// Children implements Node.
func (q *Question) Children() []Node {
	var out []Node
	for _, a := range q.answers.items() {
		out = append(out, a.children.items()...)
	}
	return out
}

func (q *Question) snapshot() []any {
	return []any{questionSnapshot(q)}
}

func (q *Question) fragments() []domain.ResponseItem {
	if !q.IsEnabled() {
		return nil
	}
	var answers []domain.ResponseAnswer
	for _, a := range q.answers.items() {
		ans := domain.ResponseAnswer{Item: buildFragments(a.children.items())}
		if v := a.value.Get(); !schema.IsEmpty(v) {
			ans.Value = v
		}
		if !ans.Value.IsZero() || len(ans.Item) > 0 {
			answers = append(answers, ans)
		}
	}
	if len(answers) == 0 {
		return nil
	}
	return []domain.ResponseItem{{LinkID: q.LinkID(), Text: q.item.Text, Answer: answers}}
}

// Dispose implements Node.
func (q *Question) Dispose() {
	if q.disposed {
		return
	}
	if q.calc != nil {
		q.calc.Dispose()
	}
	q.minOccurs.Dispose()
	q.maxOccurs.Dispose()
	q.options.Dispose()
	for _, a := range q.answers.peekItems() {
		for _, child := range a.children.peekItems() {
			child.Dispose()
		}
	}
	q.release()
}

// Key returns the stable key of the occurrence.
func (a *Answer) Key() string { return a.key }

// Question returns the owning question.
func (a *Answer) Question() *Question { return a.question }

// Value returns the current value.
func (a *Answer) Value() domain.Value { return a.value.Get() }

// Index returns the position of the occurrence, or -1 once removed.
func (a *Answer) Index() int {
	return slices.Index(a.question.answers.order.Get(), a.key)
}

// Dirty reports whether a user command set this occurrence.
func (a *Answer) Dirty() bool { return a.dirty.Get() }

// Children returns the nodes nested under this occurrence.
func (a *Answer) Children() []Node { return a.children.items() }

// Scope returns the scope shared by the occurrence's children.
func (a *Answer) Scope() *Scope { return a.scope }

// Set coerces value and stores it. On error the occurrence is left unchanged.
func (a *Answer) Set(value any) error {
	q := a.question
	if err := q.form.alive(); err != nil {
		return err
	}
	if q.ReadOnly() {
		return fmt.Errorf("%w: %s", ErrReadOnly, q.LinkID())
	}
	if _, ok := q.answers.get(a.key); !ok {
		return fmt.Errorf("%w: %s", ErrAnswerIndex, a.key)
	}
	v, err := q.coerce(value)
	if err != nil {
		return fmt.Errorf("%s: %w", q.LinkID(), err)
	}
	q.form.rt.Batch(func() {
		a.value.Set(v)
		a.dirty.Set(true)
	})
	q.form.emitAnswer(q, a.Index(), v)
	return nil
}

// Clear empties the occurrence.
func (a *Answer) Clear() error {
	return a.Set(nil)
}
