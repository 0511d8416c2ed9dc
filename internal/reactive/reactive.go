// Package reactive implements explicit dependency-tracked memoization.
//
// A Signal holds a writable value. A Computed derives a value from the signals and
// computeds it reads, remembers those reads, and recomputes lazily after one of them
// changes. An Effect re-runs a side-effecting function whenever something it read changes;
// effects are queued while a Batch is open and flushed when the outermost batch closes.
//
// The package is single-threaded: a Runtime and everything created from it must be
// driven from one goroutine at a time.
package reactive

// maxFlushRounds bounds effect re-execution so that effects writing to signals they
// (transitively) read cannot spin forever.
const maxFlushRounds = 100

// Runtime owns the tracking context shared by a family of signals, computeds and effects.
type Runtime struct {
	observer   *computation
	batchDepth int
	flushing   bool
	pending    []*computation
}

// NewRuntime creates an empty runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Batch runs fn and defers effect execution until the outermost batch returns.
func (rt *Runtime) Batch(fn func()) {
	rt.batchDepth++
	defer func() {
		rt.batchDepth--
		if rt.batchDepth == 0 {
			rt.flush()
		}
	}()
	fn()
}

// Untracked runs fn without recording any dependency for the current observer.
func (rt *Runtime) Untracked(fn func()) {
	prev := rt.observer
	rt.observer = nil
	defer func() { rt.observer = prev }()
	fn()
}

// Pending reports how many effects are waiting to run.
func (rt *Runtime) Pending() int {
	return len(rt.pending)
}

func (rt *Runtime) track(s *source) {
	obs := rt.observer
	if obs == nil || obs.disposed {
		return
	}
	for _, existing := range obs.sources {
		if existing == s {
			return
		}
	}
	obs.sources = append(obs.sources, s)
	s.observers = append(s.observers, obs)
}

func (rt *Runtime) schedule(c *computation) {
	rt.pending = append(rt.pending, c)
}

func (rt *Runtime) flush() {
	if rt.flushing {
		return
	}
	rt.flushing = true
	defer func() { rt.flushing = false }()

	for round := 0; len(rt.pending) > 0 && round < maxFlushRounds; round++ {
		queue := rt.pending
		rt.pending = nil
		for _, c := range queue {
			if c.disposed || !c.dirty {
				continue
			}
			c.run()
		}
	}
	rt.pending = nil
}

// source is anything that can be read under tracking.
type source struct {
	observers []*computation
}

func (s *source) notify() {
	if len(s.observers) == 0 {
		return
	}
	observers := make([]*computation, len(s.observers))
	copy(observers, s.observers)
	for _, o := range observers {
		o.stale()
	}
}

func (s *source) remove(c *computation) {
	for i, o := range s.observers {
		if o == c {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// computation is the tracking half shared by Computed and Effect.
type computation struct {
	rt       *Runtime
	sources  []*source
	dirty    bool
	running  bool
	disposed bool
	effect   bool
	// out is notified when a derived value goes stale; nil for effects.
	out *source
	run func()
}

func (c *computation) stale() {
	if c.dirty || c.disposed {
		return
	}
	c.dirty = true
	if c.effect {
		c.rt.schedule(c)
		return
	}
	c.out.notify()
}

func (c *computation) unsubscribe() {
	for _, s := range c.sources {
		s.remove(c)
	}
	c.sources = nil
}

// execute runs fn with c as the current observer, replacing its previous dependencies.
func (c *computation) execute(fn func()) {
	c.unsubscribe()
	prev := c.rt.observer
	c.rt.observer = c
	c.running = true
	defer func() {
		c.running = false
		c.rt.observer = prev
	}()
	fn()
}

func (c *computation) dispose() {
	c.disposed = true
	c.unsubscribe()
}
