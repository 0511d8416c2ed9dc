package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/formtree/internal/logging"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/form"
	"github.com/aretw0/formtree/pkg/ports"
	"github.com/aretw0/formtree/pkg/terminology"
)

const defaultLockTTL = 30 * time.Second

// Manager orchestrates session access, ensuring safe concurrent operations.
type Manager struct {
	loader ports.QuestionnaireLoader
	store  ports.ResponseStore

	locks *locks

	mu    sync.Mutex
	forms map[string]*form.Form

	locker   ports.DistributedLocker
	lockTTL  time.Duration
	resolver *terminology.Resolver
	formOpts []form.Option
	newID    func() string
	logger   *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking. Forms are then rebuilt from the store on every
// operation, since another replica may have changed the response in between.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the lease requested from the distributed locker.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager and the forms it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithResolver expands the answer value sets of every form the manager builds.
func WithResolver(r *terminology.Resolver) Option {
	return func(m *Manager) {
		m.resolver = r
	}
}

// WithFormOptions appends options applied to every form.
func WithFormOptions(opts ...form.Option) Option {
	return func(m *Manager) {
		m.formOpts = append(m.formOpts, opts...)
	}
}

// WithIDGenerator replaces the random session id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// NewManager creates a session manager over the given loader and store.
func NewManager(loader ports.QuestionnaireLoader, store ports.ResponseStore, opts ...Option) *Manager {
	m := &Manager{
		loader:  loader,
		store:   store,
		locks:   newLocks(),
		forms:   make(map[string]*form.Form),
		lockTTL: defaultLockTTL,
		newID:   randomID,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a new session on the questionnaire addressed by ref, optionally hydrated
// from seed, persists its initial response and returns the session id.
func (m *Manager) Create(ctx context.Context, ref string, seed *domain.QuestionnaireResponse) (string, error) {
	q, err := m.loader.Load(ctx, ref)
	if err != nil {
		return "", err
	}

	id := m.newID()
	err = m.WithLock(ctx, id, func(ctx context.Context) error {
		if _, err := m.store.Load(ctx, id); err == nil {
			return fmt.Errorf("session %s already exists", id)
		} else if !errors.Is(err, domain.ErrResponseNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		f := m.open(ctx, id, q, seed)
		if err := m.persist(ctx, id, f); err != nil {
			f.Dispose()
			return err
		}
		m.keep(id, f)
		return nil
	})
	if err != nil {
		return "", err
	}
	m.logger.Info("session created", "session_id", id, "questionnaire", q.Reference())
	return id, nil
}

// View runs fn against the session's form without persisting afterwards.
func (m *Manager) View(ctx context.Context, sessionID string, fn func(*form.Form) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		f, err := m.checkout(ctx, sessionID)
		if err != nil {
			return err
		}
		defer m.keep(sessionID, f)
		return fn(f)
	})
}

// Update runs fn against the session's form and persists the resulting response, even
// when fn fails part way, so the store never lags behind the live form.
func (m *Manager) Update(ctx context.Context, sessionID string, fn func(*form.Form) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		f, err := m.checkout(ctx, sessionID)
		if err != nil {
			return err
		}
		defer m.keep(sessionID, f)
		return errors.Join(fn(f), m.persist(ctx, sessionID, f))
	})
}

// Response returns the session's current response document.
func (m *Manager) Response(ctx context.Context, sessionID string) (*domain.QuestionnaireResponse, error) {
	var out *domain.QuestionnaireResponse
	err := m.View(ctx, sessionID, func(f *form.Form) error {
		out = response(sessionID, f)
		return nil
	})
	return out, err
}

// Delete disposes the live form and removes the stored response.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if _, err := m.store.Load(ctx, sessionID); err != nil && m.cached(sessionID) == nil {
			return translate(sessionID, err)
		}
		if f := m.evict(sessionID); f != nil {
			f.Dispose()
		}
		if err := m.store.Delete(ctx, sessionID); err != nil {
			return err
		}
		m.logger.Info("session deleted", "session_id", sessionID)
		return nil
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	ids, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Store returns the underlying response store.
func (m *Manager) Store() ports.ResponseStore {
	return m.store
}

// Close disposes every live form. Stored responses are kept.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, f := range m.forms {
		f.Dispose()
		delete(m.forms, id)
	}
}

// checkout returns the live form of the session, rebuilding it from the store when it is
// not held in memory. The caller holds the session lock.
func (m *Manager) checkout(ctx context.Context, sessionID string) (*form.Form, error) {
	if f := m.cached(sessionID); f != nil {
		return f, nil
	}

	stored, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, translate(sessionID, err)
	}
	q, err := m.loader.Load(ctx, stored.Questionnaire)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	m.logger.Debug("session rehydrated", "session_id", sessionID)
	return m.open(ctx, sessionID, q, stored), nil
}

func (m *Manager) open(ctx context.Context, sessionID string, q *domain.Questionnaire, seed *domain.QuestionnaireResponse) *form.Form {
	opts := make([]form.Option, 0, len(m.formOpts)+2)
	opts = append(opts, form.WithLogger(m.logger.With("session_id", sessionID)))
	opts = append(opts, m.formOpts...)
	if seed != nil {
		opts = append(opts, form.WithResponse(seed))
	}
	f := form.New(q, opts...)

	if m.resolver != nil {
		if err := m.resolver.ResolveAll(ctx, f, q); err != nil {
			m.logger.Warn("value set resolution failed", "session_id", sessionID, "err", err)
		}
	}
	return f
}

func (m *Manager) persist(ctx context.Context, sessionID string, f *form.Form) error {
	if err := m.store.Save(ctx, sessionID, response(sessionID, f)); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", sessionID, err)
	}
	return nil
}

func (m *Manager) cached(sessionID string) *form.Form {
	if m.locker != nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forms[sessionID]
}

// keep holds f in memory, or disposes it when running distributed.
func (m *Manager) keep(sessionID string, f *form.Form) {
	if m.locker != nil {
		f.Dispose()
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forms[sessionID] = f
}

func (m *Manager) evict(sessionID string) *form.Form {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.forms[sessionID]
	delete(m.forms, sessionID)
	return f
}

func response(sessionID string, f *form.Form) *domain.QuestionnaireResponse {
	r := f.Response()
	if r.ID == "" {
		r.ID = sessionID
	}
	return r
}

func translate(sessionID string, err error) error {
	if errors.Is(err, domain.ErrResponseNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return err
}

func randomID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("s-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
