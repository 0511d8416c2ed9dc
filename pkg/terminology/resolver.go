package terminology

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/formtree/internal/logging"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/ports"
)

// ErrSuperseded is returned when a newer request for the same value set was issued
// before this one completed.
var ErrSuperseded = errors.New("expansion superseded by a newer request")

// Publisher receives the resolved options. *form.Form implements it. Requests are
// ordered per publisher, so implementations must be comparable (typically pointers).
type Publisher interface {
	PublishOptions(valueSet string, options []domain.AnswerOption, err error)
}

// Resolver expands value sets through a ports.ValueSetExpander.
type Resolver struct {
	expander ports.ValueSetExpander
	logger   *slog.Logger

	mu     sync.Mutex
	tokens map[tokenKey]*tokenEntry
}

type tokenKey struct {
	pub      Publisher
	valueSet string
}

// tokenEntry is dropped once no request for its key is in flight.
type tokenEntry struct {
	latest  uint64
	pending int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver over expander.
func NewResolver(expander ports.ValueSetExpander, opts ...Option) *Resolver {
	r := &Resolver{
		expander: expander,
		logger:   logging.NewNop(),
		tokens:   make(map[tokenKey]*tokenEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve expands valueSet and publishes the outcome, success or failure, unless a
// newer request for the same publisher and value set was issued meanwhile. In that
// case nothing is published and ErrSuperseded is returned. Requests from different
// publishers never supersede each other.
func (r *Resolver) Resolve(ctx context.Context, pub Publisher, valueSet string) error {
	key := tokenKey{pub: pub, valueSet: valueSet}
	token := r.issue(key)
	options, err := r.expander.Expand(ctx, valueSet)
	if !r.finish(key, token) {
		r.logger.Debug("stale expansion discarded", "value_set", valueSet, "token", token)
		return ErrSuperseded
	}
	if err != nil {
		r.logger.Warn("value set expansion failed", "value_set", valueSet, "err", err)
	}
	pub.PublishOptions(valueSet, options, err)
	return err
}

type result struct {
	key      tokenKey
	token    uint64
	options  []domain.AnswerOption
	err      error
}

// ResolveAll expands every value set referenced by q concurrently, then publishes the
// current results in canonical order from the calling goroutine.
func (r *Resolver) ResolveAll(ctx context.Context, pub Publisher, q *domain.Questionnaire) error {
	sets := ValueSets(q)
	results := make([]result, len(sets))

	var wg sync.WaitGroup
	for i, vs := range sets {
		key := tokenKey{pub: pub, valueSet: vs}
		results[i] = result{key: key, token: r.issue(key)}
		wg.Add(1)
		go func(res *result) {
			defer wg.Done()
			res.options, res.err = r.expander.Expand(ctx, res.key.valueSet)
		}(&results[i])
	}
	wg.Wait()

	var errs []error
	for _, res := range results {
		if !r.finish(res.key, res.token) {
			r.logger.Debug("stale expansion discarded", "value_set", res.key.valueSet, "token", res.token)
			continue
		}
		if res.err != nil {
			r.logger.Warn("value set expansion failed", "value_set", res.key.valueSet, "err", res.err)
			errs = append(errs, res.err)
		}
		pub.PublishOptions(res.key.valueSet, res.options, res.err)
	}
	return errors.Join(errs...)
}

func (r *Resolver) issue(key tokenKey) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tokens[key]
	if !ok {
		e = &tokenEntry{}
		r.tokens[key] = e
	}
	e.latest++
	e.pending++
	return e.latest
}

// finish marks a request done and reports whether it is still the latest for key.
func (r *Resolver) finish(key tokenKey, token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.tokens[key]
	e.pending--
	if e.pending == 0 {
		delete(r.tokens, key)
	}
	return e.latest == token
}


// ValueSets returns the distinct answerValueSet canonicals used anywhere in q.
func ValueSets(q *domain.Questionnaire) []string {
	seen := make(map[string]bool)
	var walk func(items []domain.Item)
	walk = func(items []domain.Item) {
		for i := range items {
			if vs := items[i].AnswerValueSet; vs != "" {
				seen[vs] = true
			}
			walk(items[i].Item)
		}
	}
	walk(q.Item)

	out := make([]string, 0, len(seen))
	for vs := range seen {
		out = append(out, vs)
	}
	sort.Strings(out)
	return out
}
