package form

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/formtree/internal/logging"
	"github.com/aretw0/formtree/internal/reactive"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/fhirpath"
)

// Form is the runtime of one questionnaire: the node tree, its root scope and the
// response it produces.
//
// A Form is single-threaded. Every command recomputes what depends on it before it
// returns, so accessors always observe a consistent state. Callers sharing a Form
// across goroutines must serialize access (see pkg/session).
type Form struct {
	rt            *reactive.Runtime
	questionnaire *domain.Questionnaire
	// questionnaireSnapshot backs %questionnaire.
	questionnaireSnapshot fhirpath.Collection

	root      *Scope
	exprs     *Registry
	nodes     *keyedList[Node]
	resource  *reactive.Computed[fhirpath.Collection]
	submitted *reactive.Signal[bool]
	valueSets map[string]*reactive.Signal[OptionState]
	pending   []func()

	seed     *domain.QuestionnaireResponse
	meta     responseMeta
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	clock    func() time.Time
	readOnly bool
	disposed bool
}

// Option configures a Form.
type Option func(*Form)

// WithResponse hydrates the form from a prior response document.
func WithResponse(r *domain.QuestionnaireResponse) Option {
	return func(f *Form) {
		f.seed = r
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Form) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(f *Form) {
		f.hooks = hooks
	}
}

// WithClock sets the clock used by now(), today() and the authored timestamp.
func WithClock(clock func() time.Time) Option {
	return func(f *Form) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// WithReadOnly makes every node read-only.
func WithReadOnly(readOnly bool) Option {
	return func(f *Form) {
		f.readOnly = readOnly
	}
}

// New builds the form for q. Construction never fails: expression and structural
// problems surface as diagnostics.
func New(q *domain.Questionnaire, opts ...Option) *Form {
	f := &Form{
		rt:            reactive.NewRuntime(),
		questionnaire: q,
		valueSets:     make(map[string]*reactive.Signal[OptionState]),
		logger:        logging.NewNop(),
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.questionnaireSnapshot = fhirpath.Collection{questionnaireSnapshot(q)}
	f.submitted = reactive.NewSignal(f.rt, false, nil)
	f.meta = metaFrom(f.seed)
	f.build(f.seed)
	f.logger.Debug("form built",
		"questionnaire", q.Reference(),
		"hydrated", f.seed != nil,
		"nodes", len(f.nodes.peekItems()))
	return f
}

func (f *Form) build(seed *domain.QuestionnaireResponse) {
	f.root = NewScope(f.rt)
	f.nodes = newKeyedList[Node](f.rt)
	f.resource = reactive.NewComputed(f.rt, f.computeResource)

	env := &environment{form: f, scope: f.root, context: f.resourceSnapshot}
	f.exprs = newRegistry(f, "", env)
	for i := range f.questionnaire.Extension {
		if ext := &f.questionnaire.Extension[i]; ext.URL == domain.ExtVariable {
			f.exprs.add(SlotVariable, ext.ValueExpression)
		}
	}
	f.exprs.publish(f.root)

	var items []domain.ResponseItem
	if seed != nil {
		items = seed.Item
	}
	f.rt.Batch(func() {
		f.buildNodes(f.questionnaire.Item, nil, f.root, "", items, seed != nil, f.nodes)
		f.activatePending()
	})
}

func (f *Form) computeResource() fhirpath.Collection {
	m := map[string]any{
		"resourceType": domain.ResourceTypeResponse,
		"status":       f.status(),
	}
	if ref := f.questionnaire.Reference(); ref != "" {
		m["questionnaire"] = ref
	}
	if items := snapshotAll(f.nodes.items()); len(items) > 0 {
		m["item"] = items
	}
	return fhirpath.Collection{m}
}

func (f *Form) resourceSnapshot() fhirpath.Collection {
	return f.resource.Get()
}

func (f *Form) status() string {
	if f.meta.Status == "" {
		return domain.StatusInProgress
	}
	return f.meta.Status
}

// enqueue defers fn until the nodes being built are attached to the tree.
func (f *Form) enqueue(fn func()) {
	f.pending = append(f.pending, fn)
}

func (f *Form) activatePending() {
	for len(f.pending) > 0 {
		queue := f.pending
		f.pending = nil
		for _, fn := range queue {
			fn()
		}
	}
}

func (f *Form) alive() error {
	if f.disposed {
		return domain.ErrDisposed
	}
	return nil
}

// Questionnaire returns the template.
func (f *Form) Questionnaire() *domain.Questionnaire { return f.questionnaire }

// Nodes returns the top-level nodes.
func (f *Form) Nodes() []Node { return f.nodes.items() }

// Scope returns the root scope.
func (f *Form) Scope() *Scope { return f.root }

// Find returns the first node with linkID visible from the root scope, or nil.
// Nodes inside repeat occurrences are only reachable through their wrapper.
func (f *Form) Find(linkID string) Node {
	return f.root.LookupNode(linkID)
}

// Node returns the node with the given key, or nil.
func (f *Form) Node(key string) Node {
	var found Node
	f.Walk(func(n Node) bool {
		if n.Key() == key {
			found = n
			return false
		}
		return true
	})
	return found
}

// Question returns the question with linkID.
func (f *Form) Question(linkID string) (*Question, error) {
	n := f.Find(linkID)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, linkID)
	}
	q, ok := n.(*Question)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", domain.ErrNotQuestion, linkID, n.Kind())
	}
	return q, nil
}

// Walk visits every node depth-first until fn returns false.
func (f *Form) Walk(fn func(Node) bool) {
	for _, n := range f.nodes.items() {
		if !Walk(n, fn) {
			return
		}
	}
}

// SetAnswer sets the first answer of the question with linkID (or key, when it
// contains a path separator).
func (f *Form) SetAnswer(ref string, value any) error {
	if err := f.alive(); err != nil {
		return err
	}
	q, err := f.resolveQuestion(ref)
	if err != nil {
		return err
	}
	return q.SetAnswer(0, value)
}

func (f *Form) resolveQuestion(ref string) (*Question, error) {
	if !strings.ContainsAny(ref, "/#[") {
		return f.Question(ref)
	}
	n := f.Node(ref)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, ref)
	}
	q, ok := n.(*Question)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", domain.ErrNotQuestion, ref, n.Kind())
	}
	return q, nil
}

// Submitted reports whether ValidateAll has run.
func (f *Form) Submitted() bool { return f.submitted.Get() }

// Issues returns every current issue. Content checks stay deferred until the node is
// touched or ValidateAll has run.
func (f *Form) Issues() domain.IssueList {
	var out domain.IssueList
	for _, n := range f.nodes.items() {
		out = append(out, n.Issues()...)
	}
	return out
}

// ValidateAll marks submission as attempted and reports whether no issue remains
// outside read-only and disabled nodes.
func (f *Form) ValidateAll() bool {
	if f.disposed {
		return false
	}
	start := time.Now()
	f.submitted.Set(true)
	issues := f.Issues()
	valid := len(issues) == 0
	f.logger.Debug("form validated", "valid", valid, "issues", len(issues))
	if f.hooks.OnValidate != nil {
		f.hooks.OnValidate(&domain.ValidationEvent{
			EventBase: f.event(domain.EventValidate),
			Valid:     valid,
			Issues:    len(issues),
			Duration:  time.Since(start),
		})
	}
	return valid
}

// Submit validates the form and, when valid, marks the response completed.
// It returns a domain.IssueList error otherwise.
func (f *Form) Submit() (*domain.QuestionnaireResponse, error) {
	if err := f.alive(); err != nil {
		return nil, err
	}
	if !f.ValidateAll() {
		return nil, f.Issues()
	}
	f.meta.Status = domain.StatusCompleted
	f.meta.Authored = f.clock().UTC().Format(time.RFC3339)
	f.logger.Info("form submitted", "questionnaire", f.questionnaire.Reference())
	return f.Response(), nil
}

// Reset discards every answer and rebuilds the tree from the template, including
// initial values. Keys of the rebuilt nodes match those of a fresh form.
func (f *Form) Reset() {
	if f.disposed {
		return
	}
	f.rt.Batch(func() {
		f.teardown()
		f.meta.Status = domain.StatusInProgress
		f.submitted.Set(false)
		f.build(nil)
	})
	f.logger.Debug("form reset", "questionnaire", f.questionnaire.Reference())
}

// Dispose releases the tree. Later commands fail with domain.ErrDisposed.
func (f *Form) Dispose() {
	if f.disposed {
		return
	}
	f.teardown()
	f.disposed = true
}

func (f *Form) teardown() {
	for _, n := range f.nodes.peekItems() {
		n.Dispose()
	}
	f.exprs.dispose()
	f.resource.Dispose()
}

// ExpressionErrors returns the diagnostics of every failing expression slot.
func (f *Form) ExpressionErrors() []*ExpressionError {
	out := f.exprs.Errors()
	f.Walk(func(n Node) bool {
		out = append(out, n.Expressions().Errors()...)
		return true
	})
	return out
}

// ValueSets returns the answerValueSet canonicals the form is waiting on or holds.
func (f *Form) ValueSets() []string {
	out := make([]string, 0, len(f.valueSets))
	for url := range f.valueSets {
		out = append(out, url)
	}
	slices.Sort(out)
	return out
}

// PublishOptions stores the resolved options of a value set. A nil error marks the
// state ready; otherwise the questions bound to it report an error state.
func (f *Form) PublishOptions(valueSet string, options []domain.AnswerOption, err error) {
	state := Ready(options)
	if err != nil {
		state = OptionState{Status: OptionsError, Err: err}
		f.logger.Warn("value set failed", "value_set", valueSet, "err", err)
	}
	f.valueSet(valueSet).Set(state)
}

func (f *Form) valueSet(url string) *reactive.Signal[OptionState] {
	s, ok := f.valueSets[url]
	if !ok {
		s = reactive.NewSignal(f.rt, OptionState{Status: OptionsLoading}, nil)
		f.valueSets[url] = s
	}
	return s
}

func (f *Form) now() time.Time { return f.clock() }

func (f *Form) trace(name string, c fhirpath.Collection) {
	f.logger.Debug("fhirpath trace", "name", name, "value", c)
}

func (f *Form) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: f.clock(), Type: t}
}

func (f *Form) reportExpressionError(e *ExpressionError) {
	f.logger.Warn("expression failed",
		"link_id", e.LinkID,
		"slot", string(e.Slot),
		"kind", e.Kind.String(),
		"err", e.Err)
	if f.hooks.OnExpressionError != nil {
		f.hooks.OnExpressionError(&domain.ExpressionEvent{
			EventBase: f.event(domain.EventExpressionError),
			LinkID:    e.LinkID,
			Slot:      string(e.Slot),
			Kind:      e.Kind.String(),
			Err:       e.Err,
		})
	}
}

func (f *Form) reportStructure(issue domain.Issue) {
	f.logger.Warn("structure issue", "link_id", issue.LinkID, "node_key", issue.NodeKey, "err", issue.Message)
	if f.hooks.OnStructureIssue != nil {
		f.hooks.OnStructureIssue(&issue)
	}
}

func (f *Form) emitAnswer(q *Question, index int, v domain.Value) {
	f.logger.Debug("answer changed", "link_id", q.LinkID(), "node_key", q.Key(), "index", index)
	if f.hooks.OnAnswerChange != nil {
		f.hooks.OnAnswerChange(&domain.AnswerEvent{
			EventBase: f.event(domain.EventAnswerChange),
			LinkID:    q.LinkID(),
			NodeKey:   q.Key(),
			Index:     index,
			Value:     v,
		})
	}
}
