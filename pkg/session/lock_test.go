package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
)

func TestManager_LocksAreReleased(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		sid := fmt.Sprintf("session-%d", i)
		require.NoError(t, mgr.Save(ctx, sid, &domain.Progress{SessionID: sid}))
		require.NoError(t, mgr.Delete(ctx, sid))
	}
	assert.Empty(t, mgr.locks, "every per-session lock is dropped once unused")
}

func TestManager_UpdateIsSerialized(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, "s1", &domain.Progress{SessionID: "s1", SceneIndex: 0}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, mgr.Update(ctx, "s1", func(p *domain.Progress) error {
				p.SceneIndex++
				return nil
			}))
		}()
	}
	wg.Wait()

	p, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 50, p.SceneIndex)
	assert.Empty(t, mgr.locks)
}
