package formtree

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/formtree/internal/logging"
	"github.com/aretw0/formtree/pkg/adapters/loam"
	"github.com/aretw0/formtree/pkg/adapters/memory"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/form"
	"github.com/aretw0/formtree/pkg/observability"
	"github.com/aretw0/formtree/pkg/ports"
	"github.com/aretw0/formtree/pkg/session"
	"github.com/aretw0/formtree/pkg/terminology"
)

// Engine is the high-level entry point of the library. It resolves questionnaires
// through a loader and opens forms, one-shot validations and sessions over them.
type Engine struct {
	loader   ports.QuestionnaireLoader
	store    ports.ResponseStore
	expander ports.ValueSetExpander
	hooks    []domain.LifecycleHooks
	formOpts []form.Option
	logger   *slog.Logger
	Name     string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom QuestionnaireLoader, bypassing the default Loam initialization.
func WithLoader(l ports.QuestionnaireLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithStore sets the response store used by sessions (default: in memory).
func WithStore(s ports.ResponseStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithExpander sets the terminology collaborator for answerValueSet items.
func WithExpander(x ports.ValueSetExpander) Option {
	return func(e *Engine) {
		e.expander = x
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHooks registers lifecycle hooks on every form the engine opens. Repeated
// calls add hooks rather than replacing them.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, hooks)
	}
}

// WithFormOptions appends options applied to every form the engine opens.
func WithFormOptions(opts ...form.Option) Option {
	return func(e *Engine) {
		e.formOpts = append(e.formOpts, opts...)
	}
}

// New initializes an Engine. By default questionnaires are read from a Loam
// repository at dir; with WithLoader, dir may be empty and is only used as a label.
func New(dir string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		if dir == "" {
			return nil, fmt.Errorf("dir is required when no custom loader is provided")
		}
		l, err := loam.NewFromPath(dir)
		if err != nil {
			return nil, err
		}
		eng.loader = l
	}
	if dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			eng.Name = filepath.Base(abs)
		}
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("source", eng.Name)
	}
	return eng, nil
}

// Loader returns the questionnaire loader.
func (e *Engine) Loader() ports.QuestionnaireLoader { return e.loader }

// Store returns the response store.
func (e *Engine) Store() ports.ResponseStore { return e.store }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Open loads the questionnaire addressed by ref and builds a form over it, hydrated
// from seed when given. Value sets are resolved before Open returns; failures leave
// the affected options in the error state. The caller disposes the form.
func (e *Engine) Open(ctx context.Context, ref string, seed *domain.QuestionnaireResponse) (*form.Form, error) {
	q, err := e.loader.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	opts := append([]form.Option{form.WithLogger(e.logger)}, e.options()...)
	if seed != nil {
		opts = append(opts, form.WithResponse(seed))
	}
	f := form.New(q, opts...)
	if r := e.resolver(); r != nil {
		if err := r.ResolveAll(ctx, f, q); err != nil {
			e.logger.Warn("value set resolution failed", "questionnaire", q.Reference(), "err", err)
		}
	}
	return f, nil
}

// Result is the outcome of Validate.
type Result struct {
	Questionnaire *domain.Questionnaire
	Response      *domain.QuestionnaireResponse
	Issues        domain.IssueList
	Expressions   []*form.ExpressionError
}

// Valid reports whether no issue was found.
func (r *Result) Valid() bool { return len(r.Issues) == 0 }

// Validate runs a full validation of seed (or of an empty response) against the
// questionnaire addressed by ref.
func (e *Engine) Validate(ctx context.Context, ref string, seed *domain.QuestionnaireResponse) (*Result, error) {
	f, err := e.Open(ctx, ref, seed)
	if err != nil {
		return nil, err
	}
	defer f.Dispose()

	f.ValidateAll()
	return &Result{
		Questionnaire: f.Questionnaire(),
		Response:      f.Response(),
		Issues:        f.Issues(),
		Expressions:   f.ExpressionErrors(),
	}, nil
}

// Sessions returns a session manager over the engine's loader and store.
func (e *Engine) Sessions(opts ...session.Option) *session.Manager {
	base := []session.Option{
		session.WithLogger(e.logger),
		session.WithFormOptions(e.options()...),
	}
	if r := e.resolver(); r != nil {
		base = append(base, session.WithResolver(r))
	}
	return session.NewManager(e.loader, e.store, append(base, opts...)...)
}

func (e *Engine) options() []form.Option {
	opts := append([]form.Option(nil), e.formOpts...)
	if len(e.hooks) > 0 {
		opts = append(opts, form.WithHooks(observability.Merge(e.hooks...)))
	}
	return opts
}

func (e *Engine) resolver() *terminology.Resolver {
	if e.expander == nil {
		return nil
	}
	return terminology.NewResolver(e.expander, terminology.WithLogger(e.logger))
}
