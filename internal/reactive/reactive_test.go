package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputed_MemoizesUntilDependencyChanges(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 2, nil)
	calls := 0
	double := NewComputed(rt, func() int {
		calls++
		return a.Get() * 2
	})

	assert.Equal(t, 4, double.Get())
	assert.Equal(t, 4, double.Get())
	assert.Equal(t, 1, calls)

	a.Set(5)
	assert.Equal(t, 1, calls, "recompute is lazy")
	assert.Equal(t, 10, double.Get())
	assert.Equal(t, 2, calls)
}

func TestComputed_DynamicDependencies(t *testing.T) {
	rt := NewRuntime()
	useA := NewSignal(rt, true, nil)
	a := NewSignal(rt, "a", nil)
	b := NewSignal(rt, "b", nil)
	calls := 0
	pick := NewComputed(rt, func() string {
		calls++
		if useA.Get() {
			return a.Get()
		}
		return b.Get()
	})

	assert.Equal(t, "a", pick.Get())
	b.Set("b2")
	assert.Equal(t, "a", pick.Get())
	assert.Equal(t, 1, calls, "b was never read")

	useA.Set(false)
	assert.Equal(t, "b2", pick.Get())
	a.Set("a2")
	assert.Equal(t, "b2", pick.Get())
	assert.Equal(t, 2, calls, "a is no longer a dependency")
}

func TestSignal_EqualitySuppressesInvalidation(t *testing.T) {
	rt := NewRuntime()
	s := NewSignal(rt, 1, func(a, b int) bool { return a == b })
	calls := 0
	c := NewComputed(rt, func() int { calls++; return s.Get() })
	c.Get()
	s.Set(1)
	c.Get()
	assert.Equal(t, 1, calls)
}

func TestEffect_RunsAfterBatch(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 1, nil)
	b := NewSignal(rt, 1, nil)
	var seen []int
	NewEffect(rt, func() { seen = append(seen, a.Get()+b.Get()) })

	rt.Batch(func() {
		a.Set(2)
		b.Set(3)
		assert.Equal(t, 1, rt.Pending())
	})
	assert.Equal(t, []int{2, 5}, seen)
}

func TestEffect_WritesPropagateInSameFlush(t *testing.T) {
	rt := NewRuntime()
	in := NewSignal(rt, 1, nil)
	out := NewSignal(rt, 0, func(a, b int) bool { return a == b })
	NewEffect(rt, func() { out.Set(in.Get() * 10) })
	derived := NewComputed(rt, func() int { return out.Get() + 1 })

	assert.Equal(t, 11, derived.Get())
	in.Set(4)
	assert.Equal(t, 41, derived.Get())
}

func TestEffect_Dispose(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 1, nil)
	runs := 0
	e := NewEffect(rt, func() { a.Get(); runs++ })
	e.Dispose()
	a.Set(2)
	assert.Equal(t, 1, runs)
}

func TestComputed_CycleReturnsPreviousValue(t *testing.T) {
	rt := NewRuntime()
	var self *Computed[int]
	self = NewComputed(rt, func() int { return self.Get() + 1 })
	assert.Equal(t, 1, self.Get())
}

func TestUntracked(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 1, nil)
	calls := 0
	c := NewComputed(rt, func() int {
		calls++
		var v int
		rt.Untracked(func() { v = a.Get() })
		return v
	})
	c.Get()
	a.Set(3)
	assert.Equal(t, 1, c.Get())
	assert.Equal(t, 1, calls)
}
