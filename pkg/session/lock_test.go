package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/formtree/pkg/adapters/memory"
)

func TestManager_LockLifecycle(t *testing.T) {
	loader, _ := memory.NewLoader()
	mgr := NewManager(loader, memory.NewStore())
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.WithLock(ctx, sid, func(context.Context) error { return nil })
		_ = mgr.Delete(ctx, sid)
	}

	if n := mgr.locks.len(); n != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", n)
	}
}
