package condition

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/arbor/pkg/domain"
)

// InventoryVariable is the list variable consulted by hasItem.
const InventoryVariable = "inventory"

type builtin struct {
	minArgs, maxArgs int // maxArgs < 0 means variadic
	call             func(store domain.VariableStore, args []any) (any, error)
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"hasItem":  {1, 1, hasItem},
		"contains": {2, 2, containsFn},
		"len":      {1, 1, lenFn},
		"defined":  {1, 1, defined},
		"min":      {1, -1, foldNumbers(math.Min)},
		"max":      {1, -1, foldNumbers(math.Max)},
		"abs":      {1, 1, absFn},
	}
}

func hasItem(store domain.VariableStore, args []any) (any, error) {
	inv, ok := store[InventoryVariable]
	if !ok {
		return false, nil
	}
	list, ok := normalize(inv).([]any)
	if !ok {
		return nil, fmt.Errorf("%s is not a list", InventoryVariable)
	}
	return listContains(list, args[0]), nil
}

func containsFn(_ domain.VariableStore, args []any) (any, error) {
	switch hay := args[0].(type) {
	case []any:
		return listContains(hay, args[1]), nil
	case string:
		needle, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("cannot search a string for %s", describe(args[1]))
		}
		return strings.Contains(hay, needle), nil
	}
	return nil, fmt.Errorf("cannot search %s", describe(args[0]))
}

func lenFn(_ domain.VariableStore, args []any) (any, error) {
	switch v := args[0].(type) {
	case []any:
		return float64(len(v)), nil
	case string:
		return float64(utf8.RuneCountInString(v)), nil
	case nil:
		return 0.0, nil
	}
	return nil, fmt.Errorf("no length for %s", describe(args[0]))
}

func defined(store domain.VariableStore, args []any) (any, error) {
	name, ok := args[0].(string)
	if !ok {
		return nil, errors.New("expects a quoted variable name")
	}
	_, exists := store[name]
	return exists, nil
}

func foldNumbers(op func(a, b float64) float64) func(domain.VariableStore, []any) (any, error) {
	return func(_ domain.VariableStore, args []any) (any, error) {
		var acc float64
		for i, a := range args {
			f, ok := a.(float64)
			if !ok {
				return nil, fmt.Errorf("argument %d is %s, not number", i+1, describe(a))
			}
			if i == 0 {
				acc = f
				continue
			}
			acc = op(acc, f)
		}
		return acc, nil
	}
}

func absFn(_ domain.VariableStore, args []any) (any, error) {
	f, ok := args[0].(float64)
	if !ok {
		return nil, fmt.Errorf("argument is %s, not number", describe(args[0]))
	}
	return math.Abs(f), nil
}

func listContains(list []any, item any) bool {
	for _, v := range list {
		if equal(normalize(v), item) {
			return true
		}
	}
	return false
}
