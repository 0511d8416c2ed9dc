package middleware_test

import (
	"github.com/aretw0/formtree/pkg/adapters/memory"
)

// NewMockStore returns the in-memory store, which never shares pointers with callers.
func NewMockStore() *memory.Store {
	return memory.NewStore()
}
