package condition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
)

func TestEvaluate(t *testing.T) {
	store := domain.VariableStore{
		"affection": 55,
		"gold":      4.0,
		"route":     "north",
		"met_rival": false,
		"inventory": []any{"key", "map"},
		"empty":     "",
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"true", true},
		{"false", false},
		{"affection >= 50 && hasItem('key')", true},
		{"affection >= 50 && hasItem('sword')", false},
		{"!(met_rival) || route == \"south\"", true},
		{"not met_rival and route == 'north'", true},
		{"gold % 2 == 0", true},
		{"gold / 2 == 2", true},
		{"-gold < 0", true},
		{"1 + 2 * 3 == 7", true},
		{"(1 + 2) * 3 == 9", true},
		{"10 - 4 - 3 == 3", true},
		{"len(inventory) == 2", true},
		{"contains(inventory, 'map')", true},
		{"contains(route, 'or')", true},
		{"defined('gold')", true},
		{"defined('ghost')", false},
		{"defined('ghost') && ghost > 3", false},
		{"min(gold, 2, 9) == 2", true},
		{"max(gold, 2, 9) == 9", true},
		{"abs(0 - gold) == 4", true},
		{"route + gold == 'north4'", true},
		{"route != 'north'", false},
		{"route < 'south'", true},
		{"gold == '4'", false},
		{"empty", false},
		{"inventory", true},
		{"null == null", true},
		{"affection", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr, store)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	store := domain.VariableStore{"x": 1.0, "name": "ann"}

	tests := []struct {
		name string
		expr string
	}{
		{"dangling operator", "x >"},
		{"unbalanced paren", "(x > 1"},
		{"unknown character", "x # 1"},
		{"unterminated string", "name == 'ann"},
		{"unknown function", "explode(x)"},
		{"wrong arity", "abs(x, x)"},
		{"undefined variable", "ghost > 1"},
		{"type mismatch", "name > 1"},
		{"division by zero", "x / 0 > 1"},
		{"trailing tokens", "x x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr, store)
			require.Error(t, err)
			assert.False(t, got)

			var ce *domain.ConditionEvaluationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.expr, ce.Expression)
			assert.ErrorIs(t, err, domain.ErrConditionEvaluation)
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	store := domain.VariableStore{"a": 3.0, "b": "x"}
	expr := "a * 2 > 5 && b == 'x'"
	first, err := Evaluate(expr, store)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		got, err := Evaluate(expr, store)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
	assert.Equal(t, domain.VariableStore{"a": 3.0, "b": "x"}, store)
}

func TestEvaluator_CacheBounded(t *testing.T) {
	e := New(WithCacheSize(2))
	for _, expr := range []string{"1 == 1", "2 == 2", "3 == 3"} {
		_, err := e.Evaluate(expr, nil)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, len(e.cache), 2)

	p1, err := e.Compile("3 == 3")
	require.NoError(t, err)
	p2, err := e.Compile("3 == 3")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}

func TestProgram_Variables(t *testing.T) {
	p, err := Compile("affection >= 50 && hasItem('key') || max(gold, bonus) > 3")
	require.NoError(t, err)
	assert.Equal(t, []string{"affection", "bonus", "gold", "inventory"}, p.Variables())
}

func TestAtNode(t *testing.T) {
	_, err := Evaluate("x >", nil)
	err = AtNode(err, "branch-1", "x >")

	var ce *domain.ConditionEvaluationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "branch-1", ce.NodeID)
	assert.Contains(t, err.Error(), "branch-1")
	assert.Nil(t, AtNode(nil, "n", ""))
}
