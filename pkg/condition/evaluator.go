package condition

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// DefaultCacheSize bounds the number of compiled expressions an Evaluator keeps.
const DefaultCacheSize = 512

// Program is a compiled expression.
type Program struct {
	source string
	root   node
}

// Compile parses an expression. An empty expression compiles to true.
func Compile(expr string) (*Program, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return &Program{source: expr, root: &literalNode{value: true}}, nil
	}
	root, err := parse(src)
	if err != nil {
		return nil, &domain.ConditionEvaluationError{Expression: expr, Err: err}
	}
	return &Program{source: expr, root: root}, nil
}

// Source returns the expression text the program was compiled from.
func (p *Program) Source() string { return p.source }

// Eval evaluates the program and reports its truthiness.
func (p *Program) Eval(store domain.VariableStore) (bool, error) {
	v, err := p.Value(store)
	if err != nil {
		return false, err
	}
	return domain.Truthy(v), nil
}

// Value evaluates the program and returns the raw result.
func (p *Program) Value(store domain.VariableStore) (any, error) {
	v, err := p.root.eval(store)
	if err != nil {
		return nil, &domain.ConditionEvaluationError{Expression: p.source, Err: err}
	}
	return v, nil
}

// Variables returns the variable names the program reads, sorted.
// Names passed to defined() and the implicit inventory of hasItem are included.
func (p *Program) Variables() []string {
	seen := make(map[string]bool)
	p.root.walk(func(n node) {
		switch t := n.(type) {
		case *identNode:
			seen[t.name] = true
		case *callNode:
			if t.name == "hasItem" {
				seen[InventoryVariable] = true
			}
		}
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluator evaluates expressions with a bounded compile cache.
// It is safe for concurrent use.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string]*Program
	limit int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCacheSize sets the compile cache bound. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(e *Evaluator) {
		e.limit = n
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{limit: DefaultCacheSize}
	for _, opt := range opts {
		opt(e)
	}
	e.cache = make(map[string]*Program)
	return e
}

// Compile returns the cached program for expr, compiling it on first use.
func (e *Evaluator) Compile(expr string) (*Program, error) {
	e.mu.Lock()
	p, ok := e.cache[expr]
	e.mu.Unlock()
	if ok {
		return p, nil
	}

	p, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	if e.limit <= 0 {
		return p, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.cache) >= e.limit {
		clear(e.cache)
	}
	e.cache[expr] = p
	return p, nil
}

// Evaluate compiles and evaluates expr against store.
// Failures are *domain.ConditionEvaluationError.
func (e *Evaluator) Evaluate(expr string, store domain.VariableStore) (bool, error) {
	p, err := e.Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Eval(store)
}

var defaultEvaluator = New()

// Evaluate evaluates expr with the package-level evaluator.
func Evaluate(expr string, store domain.VariableStore) (bool, error) {
	return defaultEvaluator.Evaluate(expr, store)
}

// AtNode attaches a node id to a ConditionEvaluationError.
// Other errors are wrapped as a new one.
func AtNode(err error, nodeID, expr string) error {
	if err == nil {
		return nil
	}
	var ce *domain.ConditionEvaluationError
	if errors.As(err, &ce) {
		c := *ce
		c.NodeID = nodeID
		return &c
	}
	return &domain.ConditionEvaluationError{NodeID: nodeID, Expression: expr, Err: err}
}
