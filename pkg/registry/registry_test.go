package registry_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/registry"
)

func TestRegistry(t *testing.T) {
	r := registry.NewRegistry[int]()
	r.Register("b", 2)
	r.Register("a", 1)
	r.Register("a", 10)

	v, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, []string{"a", "b"}, r.Names())

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	removed, ok := r.Remove("b")
	assert.True(t, ok)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := registry.NewRegistry[string]()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := string(rune('a' + i%26))
			r.Register(name, name)
			_, _ = r.Get(name)
		}()
	}
	wg.Wait()
	assert.Equal(t, 26, r.Len())
}
