package authoring

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// AddVariable defines a story variable and returns its id.
// Names are unique within a graph.
func (e *Editor) AddVariable(v domain.StoryVariable) (string, error) {
	err := e.mutate("add_variable", func(g *domain.StoryGraph) error {
		if v.Name == "" {
			return fmt.Errorf("%w: variable needs a name", domain.ErrInvalidNode)
		}
		if _, exists := g.Variable(v.Name); exists {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateVariable, v.Name)
		}
		if err := v.CheckInitialValue(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidNode, err)
		}
		if v.ID == "" {
			v.ID = e.newID("var")
		}
		v.InitialValue = domain.CloneValue(v.InitialValue)
		g.Variables = append(g.Variables, v)
		return nil
	})
	return v.ID, err
}

// SetInitialValue changes the initial value of an existing variable.
func (e *Editor) SetInitialValue(name string, value any) error {
	return e.mutate("set_initial_value", func(g *domain.StoryGraph) error {
		for i := range g.Variables {
			if g.Variables[i].Name != name {
				continue
			}
			next := g.Variables[i]
			next.InitialValue = domain.CloneValue(value)
			if err := next.CheckInitialValue(); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrInvalidNode, err)
			}
			g.Variables[i] = next
			return nil
		}
		return fmt.Errorf("variable %s: %w", name, domain.ErrNotFound)
	})
}

// RemoveVariable deletes a variable definition. Expressions that still
// reference it surface as validation warnings.
func (e *Editor) RemoveVariable(name string) error {
	return e.mutate("remove_variable", func(g *domain.StoryGraph) error {
		for i, v := range g.Variables {
			if v.Name == name {
				g.Variables = append(g.Variables[:i], g.Variables[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("variable %s: %w", name, domain.ErrNotFound)
	})
}
