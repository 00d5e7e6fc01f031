package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := middleware.NewPIIMiddleware([]string{"email", "^real_name$"})(underlying)

	p := progress("s1")
	p.Variables = domain.VariableStore{
		"real_name": "Ann Smith",
		"nickname":  "annie",
		"contact": map[string]any{
			"work_email": "ann@example.com",
			"city":       "Lisbon",
		},
	}
	require.NoError(t, store.Save(ctx, "s1", p))
	assert.Equal(t, "Ann Smith", p.Variables["real_name"], "the caller's progress is not modified")

	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, stored.Variables["real_name"])
	assert.Equal(t, "annie", stored.Variables["nickname"])
	contact := stored.Variables["contact"].(map[string]any)
	assert.Equal(t, middleware.Mask, contact["work_email"])
	assert.Equal(t, "Lisbon", contact["city"])
}

func TestChain_EncryptsMaskedProgress(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := middleware.Chain(underlying,
		middleware.NewPIIMiddleware([]string{"secret"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)

	require.NoError(t, store.Save(ctx, "s1", progress("s1")))

	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Contains(t, stored.Variables, "__encrypted__")

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Variables["secret"])

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}
