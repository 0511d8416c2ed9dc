package reactive

// Signal is a writable reactive value.
type Signal[T any] struct {
	rt    *Runtime
	src   source
	value T
	equal func(a, b T) bool
}

// NewSignal creates a signal. When equal is non-nil, writes of an equal value are ignored.
func NewSignal[T any](rt *Runtime, initial T, equal func(a, b T) bool) *Signal[T] {
	return &Signal[T]{rt: rt, value: initial, equal: equal}
}

// Get returns the current value and records a dependency on the signal.
func (s *Signal[T]) Get() T {
	s.rt.track(&s.src)
	return s.value
}

// Peek returns the current value without recording a dependency.
func (s *Signal[T]) Peek() T {
	return s.value
}

// Set stores v and invalidates every dependent.
func (s *Signal[T]) Set(v T) {
	if s.equal != nil && s.equal(s.value, v) {
		return
	}
	s.value = v
	s.rt.Batch(s.src.notify)
}

// Update replaces the value with fn(current).
func (s *Signal[T]) Update(fn func(T) T) {
	s.Set(fn(s.value))
}

// Computed is a lazily evaluated, memoized derived value.
type Computed[T any] struct {
	rt    *Runtime
	src   source
	comp  computation
	fn    func() T
	value T
}

// NewComputed creates a derived value. fn runs on first Get and again after any
// dependency it read has changed.
func NewComputed[T any](rt *Runtime, fn func() T) *Computed[T] {
	c := &Computed[T]{rt: rt, fn: fn}
	c.comp = computation{rt: rt, dirty: true, out: &c.src}
	c.comp.run = c.recompute
	return c
}

// Get returns the memoized value, recomputing it when stale.
// A Computed read again while it is computing returns its previous value.
func (c *Computed[T]) Get() T {
	c.rt.track(&c.src)
	if c.comp.disposed {
		return c.value
	}
	if c.comp.dirty && !c.comp.running {
		c.recompute()
	}
	return c.value
}

// Peek returns the memoized value without recording a dependency.
func (c *Computed[T]) Peek() T {
	var v T
	c.rt.Untracked(func() { v = c.Get() })
	return v
}

// Dispose severs the computed from its dependencies. Later reads return the last value.
func (c *Computed[T]) Dispose() {
	c.comp.dispose()
}

func (c *Computed[T]) recompute() {
	c.comp.execute(func() {
		c.value = c.fn()
	})
	c.comp.dirty = false
}

// Effect re-runs a function whenever one of the values it read changes.
type Effect struct {
	comp computation
	fn   func()
}

// NewEffect runs fn immediately and schedules it again after each relevant change.
func NewEffect(rt *Runtime, fn func()) *Effect {
	e := &Effect{fn: fn}
	e.comp = computation{rt: rt, effect: true}
	e.comp.run = e.run
	rt.Batch(e.run)
	return e
}

// Dispose stops the effect.
func (e *Effect) Dispose() {
	e.comp.dispose()
}

func (e *Effect) run() {
	if e.comp.disposed {
		return
	}
	e.comp.dirty = false
	e.comp.execute(e.fn)
}
