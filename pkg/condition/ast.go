package condition

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/aretw0/arbor/pkg/domain"
)

// ErrUndefinedVariable is returned when an expression reads a name the store lacks.
var ErrUndefinedVariable = errors.New("undefined variable")

type node interface {
	eval(store domain.VariableStore) (any, error)
	walk(fn func(node))
}

type literalNode struct{ value any }

func (n *literalNode) eval(domain.VariableStore) (any, error) { return n.value, nil }
func (n *literalNode) walk(fn func(node)) { fn(n) }

type identNode struct{ name string }

func (n *identNode) eval(store domain.VariableStore) (any, error) {
	v, ok := store[n.name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, n.name)
	}
	return normalize(v), nil
}

func (n *identNode) walk(fn func(node)) { fn(n) }

type unaryNode struct {
	op string
	x  node
}

func (n *unaryNode) eval(store domain.VariableStore) (any, error) {
	v, err := n.x.eval(store)
	if err != nil {
		return nil, err
	}
	if n.op == "!" {
		return !domain.Truthy(v), nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("cannot negate %s", describe(v))
	}
	return -f, nil
}

func (n *unaryNode) walk(fn func(node)) {
	fn(n)
	n.x.walk(fn)
}

type binaryNode struct {
	op          string
	left, right node
}

func (n *binaryNode) walk(fn func(node)) {
	fn(n)
	n.left.walk(fn)
	n.right.walk(fn)
}

func (n *binaryNode) eval(store domain.VariableStore) (any, error) {
	l, err := n.left.eval(store)
	if err != nil {
		return nil, err
	}
	// short-circuit
	switch n.op {
	case "&&":
		if !domain.Truthy(l) {
			return false, nil
		}
		r, err := n.right.eval(store)
		if err != nil {
			return nil, err
		}
		return domain.Truthy(r), nil
	case "||":
		if domain.Truthy(l) {
			return true, nil
		}
		r, err := n.right.eval(store)
		if err != nil {
			return nil, err
		}
		return domain.Truthy(r), nil
	}

	r, err := n.right.eval(store)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "<", "<=", ">", ">=":
		return compare(n.op, l, r)
	case "+":
		ls, lok := l.(string)
		rs, rok := r.(string)
		if lok || rok {
			if !lok {
				ls = stringify(l)
			}
			if !rok {
				rs = stringify(r)
			}
			return ls + rs, nil
		}
	}

	lf, lok := l.(float64)
	rf, rok := r.(float64)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %s needs numbers, got %s and %s", n.op, describe(l), describe(r))
	}
	switch n.op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, errors.New("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, errors.New("division by zero")
		}
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("unknown operator %s", n.op)
}

type callNode struct {
	name string
	fn   builtin
	args []node
}

func (n *callNode) walk(fn func(node)) {
	fn(n)
	for _, a := range n.args {
		a.walk(fn)
	}
}

func (n *callNode) checkArity(pos int) error {
	if len(n.args) < n.fn.minArgs || n.fn.maxArgs >= 0 && len(n.args) > n.fn.maxArgs {
		return &SyntaxError{Pos: pos, Msg: fmt.Sprintf("wrong number of arguments to %s", n.name)}
	}
	return nil
}

func (n *callNode) eval(store domain.VariableStore) (any, error) {
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(store)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := n.fn.call(store, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.name, err)
	}
	return v, nil
}

// normalize maps store values onto the evaluator's value space:
// float64, string, bool, nil and []any.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, bool, string, float64, []any:
		return v
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	if f, ok := domain.ToNumber(v); ok {
		return f
	}
	return v
}

func equal(l, r any) bool {
	switch lv := l.(type) {
	case nil:
		return r == nil
	case float64:
		rv, ok := r.(float64)
		return ok && lv == rv
	case string:
		rv, ok := r.(string)
		return ok && lv == rv
	case bool:
		rv, ok := r.(bool)
		return ok && lv == rv
	case []any:
		rv, ok := r.([]any)
		if !ok || len(lv) != len(rv) {
			return false
		}
		for i := range lv {
			if !equal(normalize(lv[i]), normalize(rv[i])) {
				return false
			}
		}
		return true
	}
	return false
}

func compare(op string, l, r any) (any, error) {
	var c int
	switch lv := l.(type) {
	case float64:
		rv, ok := r.(float64)
		if !ok {
			return nil, fmt.Errorf("cannot compare number with %s", describe(r))
		}
		c = cmpOrdered(lv, rv)
	case string:
		rv, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("cannot compare string with %s", describe(r))
		}
		c = cmpOrdered(lv, rv)
	default:
		return nil, fmt.Errorf("cannot order %s", describe(l))
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func cmpOrdered[T float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	}
	return fmt.Sprint(v)
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "list"
	}
	return fmt.Sprintf("%T", v)
}
