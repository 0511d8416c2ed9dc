package form

import (
	"slices"

	"github.com/aretw0/formtree/internal/reactive"
)

// keyedList is an ordered collection of records addressed by stable keys.
// Records live in an arena map; insertion and removal only touch the ordered key list,
// so the keys of the remaining records never change.
type keyedList[T any] struct {
	arena map[string]T
	order *reactive.Signal[[]string]
}

func newKeyedList[T any](rt *reactive.Runtime) *keyedList[T] {
	return &keyedList[T]{
		arena: make(map[string]T),
		order: reactive.NewSignal[[]string](rt, nil, nil),
	}
}

func (l *keyedList[T]) append(key string, v T) {
	l.arena[key] = v
	l.order.Set(append(slices.Clone(l.order.Peek()), key))
}

func (l *keyedList[T]) remove(key string) (T, bool) {
	v, ok := l.arena[key]
	if !ok {
		return v, false
	}
	delete(l.arena, key)
	keys := slices.Clone(l.order.Peek())
	if i := slices.Index(keys, key); i >= 0 {
		keys = slices.Delete(keys, i, i+1)
	}
	l.order.Set(keys)
	return v, true
}

func (l *keyedList[T]) get(key string) (T, bool) {
	v, ok := l.arena[key]
	return v, ok
}

// items returns the records in order, recording a dependency on membership.
func (l *keyedList[T]) items() []T {
	keys := l.order.Get()
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, l.arena[k])
	}
	return out
}

func (l *keyedList[T]) peekItems() []T {
	keys := l.order.Peek()
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, l.arena[k])
	}
	return out
}

func (l *keyedList[T]) len() int {
	return len(l.order.Get())
}

func (l *keyedList[T]) clear() []T {
	all := l.peekItems()
	l.arena = make(map[string]T)
	l.order.Set(nil)
	return all
}
