package condition

import (
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

var (
	// ErrNotList is returned by push and pop on a value that is not list-shaped.
	ErrNotList = errors.New("value is not a list")
	// ErrEmptyList is returned by pop on an empty list.
	ErrEmptyList = errors.New("list is empty")
	// ErrUnknownOperation is returned for an operation name Apply does not know.
	ErrUnknownOperation = errors.New("unknown operation")
)

// OperationError reports a modifier operation that had no effect.
type OperationError struct {
	Op  domain.VariableOperation
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op.Operation, e.Op.Variable, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// Apply runs one modifier operation and returns the resulting store.
// The input store is never mutated. On error the returned store equals the
// input (the operation is a no-op).
//
// Arithmetic operations treat a non-numeric current value as 0. Toggle
// coerces the current value through truthiness. Push and pop treat an
// undefined variable as an empty list.
func Apply(op domain.VariableOperation, store domain.VariableStore) (domain.VariableStore, error) {
	out := store.Clone()
	if err := applyInPlace(op, out); err != nil {
		return store.Clone(), &OperationError{Op: op, Err: err}
	}
	return out, nil
}

// ApplyAll runs ops in list order, each against the store as left by the
// previous one. Failing operations are skipped and reported; the remaining
// operations still run.
func ApplyAll(ops []domain.VariableOperation, store domain.VariableStore) (domain.VariableStore, []error) {
	out := store.Clone()
	var errs []error
	for _, op := range ops {
		before := out.Clone()
		if err := applyInPlace(op, out); err != nil {
			out = before
			errs = append(errs, &OperationError{Op: op, Err: err})
		}
	}
	return out, errs
}

func applyInPlace(op domain.VariableOperation, store domain.VariableStore) error {
	if op.Variable == "" {
		return errors.New("missing variable name")
	}
	operand, hasOperand, err := resolveOperand(op, store)
	if err != nil {
		return err
	}
	current := normalize(store[op.Variable])

	switch op.Operation {
	case domain.OpSet:
		store[op.Variable] = domain.CloneValue(operand)
	case domain.OpAdd, domain.OpSubtract, domain.OpIncrement, domain.OpDecrement:
		delta := 1.0
		if hasOperand {
			f, ok := normalize(operand).(float64)
			if !ok {
				return fmt.Errorf("operand %v is not a number", operand)
			}
			delta = f
		} else if op.Operation == domain.OpAdd || op.Operation == domain.OpSubtract {
			return errors.New("missing operand")
		}
		base, _ := current.(float64)
		if op.Operation == domain.OpSubtract || op.Operation == domain.OpDecrement {
			delta = -delta
		}
		store[op.Variable] = base + delta
	case domain.OpToggle:
		store[op.Variable] = !domain.Truthy(current)
	case domain.OpPush:
		list, err := asList(current)
		if err != nil {
			return err
		}
		store[op.Variable] = append(list, domain.CloneValue(operand))
	case domain.OpPop:
		list, err := asList(current)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return ErrEmptyList
		}
		store[op.Variable] = list[:len(list)-1]
	default:
		return fmt.Errorf("%w %q", ErrUnknownOperation, op.Operation)
	}
	return nil
}

func resolveOperand(op domain.VariableOperation, store domain.VariableStore) (any, bool, error) {
	if op.ValueFrom != "" {
		v, ok := store[op.ValueFrom]
		if !ok {
			return nil, false, fmt.Errorf("%w: %s", ErrUndefinedVariable, op.ValueFrom)
		}
		return v, true, nil
	}
	return op.Value, op.Value != nil, nil
}

func asList(v any) ([]any, error) {
	switch t := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return append([]any(nil), t...), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotList, describe(v))
}
