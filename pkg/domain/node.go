package domain

import "fmt"

// NodeType is the tag of the GraphNode union.
type NodeType string

const (
	// NodeTypeStart is the single entry point of a graph. It is a pass-through.
	NodeTypeStart NodeType = "start"
	// NodeTypeScene presents an external content unit line by line.
	NodeTypeScene NodeType = "scene"
	// NodeTypeChoice pauses until the reader picks an option.
	NodeTypeChoice NodeType = "choice"
	// NodeTypeBranch routes silently on story variables.
	NodeTypeBranch NodeType = "branch"
	// NodeTypeEnding terminates the unit with an ending descriptor.
	NodeTypeEnding NodeType = "ending"
	// NodeTypeVariableModifier mutates story variables and passes through.
	NodeTypeVariableModifier NodeType = "variable_modifier"
	// NodeTypeComment is an author annotation. The runtime never visits it.
	NodeTypeComment NodeType = "comment"
)

// NodeTypes lists every node type in canonical order.
var NodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeScene,
	NodeTypeChoice,
	NodeTypeBranch,
	NodeTypeEnding,
	NodeTypeVariableModifier,
	NodeTypeComment,
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Position is the editor canvas coordinate of a node's top-left corner.
type Position struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
}

// Dimensions is the rendered size of a node on the editor canvas.
type Dimensions struct {
	Width  float64 `json:"width" yaml:"width" mapstructure:"width"`
	Height float64 `json:"height" yaml:"height" mapstructure:"height"`
}

// DefaultDimensions is used for nodes that were never measured by the editor.
var DefaultDimensions = Dimensions{Width: 240, Height: 120}

// GraphNode is a vertex of the story graph.
// Exactly one payload field matching Type is non-nil (start nodes carry none).
type GraphNode struct {
	ID         string      `json:"id" yaml:"id"`
	Type       NodeType    `json:"type" yaml:"type"`
	Position   Position    `json:"position" yaml:"position"`
	Dimensions *Dimensions `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Title      string      `json:"title" yaml:"title"`
	Notes      string      `json:"notes,omitempty" yaml:"notes,omitempty"`

	Scene    *ScenePayload    `json:"scene,omitempty" yaml:"scene,omitempty"`
	Choice   *ChoicePayload   `json:"choice,omitempty" yaml:"choice,omitempty"`
	Branch   *BranchPayload   `json:"branch,omitempty" yaml:"branch,omitempty"`
	Ending   *EndingPayload   `json:"ending,omitempty" yaml:"ending,omitempty"`
	Modifier *ModifierPayload `json:"modifier,omitempty" yaml:"modifier,omitempty"`
	Comment  *CommentPayload  `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Size returns the node dimensions, falling back to DefaultDimensions.
func (n *GraphNode) Size() Dimensions {
	if n.Dimensions == nil || n.Dimensions.Width <= 0 || n.Dimensions.Height <= 0 {
		return DefaultDimensions
	}
	return *n.Dimensions
}

// CheckPayload verifies that the payload fields agree with the type tag.
func (n *GraphNode) CheckPayload() error {
	set := map[NodeType]bool{
		NodeTypeScene:            n.Scene != nil,
		NodeTypeChoice:           n.Choice != nil,
		NodeTypeBranch:           n.Branch != nil,
		NodeTypeEnding:           n.Ending != nil,
		NodeTypeVariableModifier: n.Modifier != nil,
		NodeTypeComment:          n.Comment != nil,
	}
	for typ, present := range set {
		if typ != n.Type && present {
			return fmt.Errorf("node %s of type %s carries a %s payload", n.ID, n.Type, typ)
		}
	}
	switch n.Type {
	case NodeTypeStart:
		return nil
	case NodeTypeScene, NodeTypeChoice, NodeTypeBranch, NodeTypeEnding, NodeTypeVariableModifier, NodeTypeComment:
		if !set[n.Type] {
			return fmt.Errorf("node %s of type %s is missing its payload", n.ID, n.Type)
		}
		return nil
	default:
		return fmt.Errorf("node %s has unknown type %q", n.ID, n.Type)
	}
}

// Clone returns a deep copy of the node.
func (n *GraphNode) Clone() *GraphNode {
	if n == nil {
		return nil
	}
	c := *n
	if n.Dimensions != nil {
		d := *n.Dimensions
		c.Dimensions = &d
	}
	c.Scene = n.Scene.clone()
	c.Choice = n.Choice.clone()
	c.Branch = n.Branch.clone()
	c.Ending = n.Ending.clone()
	c.Modifier = n.Modifier.clone()
	if n.Comment != nil {
		cm := *n.Comment
		c.Comment = &cm
	}
	return &c
}

// ScenePayload points a scene node at its external content unit.
// Choice and Ending are optional inline exits used when no edge leaves the
// default slot.
type ScenePayload struct {
	SceneRef string         `json:"sceneRef" yaml:"sceneRef" mapstructure:"sceneRef"`
	Choice   *ChoicePayload `json:"choice,omitempty" yaml:"choice,omitempty" mapstructure:"choice"`
	Ending   *EndingPayload `json:"ending,omitempty" yaml:"ending,omitempty" mapstructure:"ending"`
}

func (p *ScenePayload) clone() *ScenePayload {
	if p == nil {
		return nil
	}
	c := *p
	c.Choice = p.Choice.clone()
	c.Ending = p.Ending.clone()
	return &c
}

// ChoiceLayout is a presentation hint for the option list.
type ChoiceLayout string

const (
	LayoutVertical   ChoiceLayout = "vertical"
	LayoutHorizontal ChoiceLayout = "horizontal"
	LayoutGrid       ChoiceLayout = "grid"
)

// OptionActionType names an action authored directly on a choice option.
type OptionActionType string

// OptionActionEndBranch ends the story at the option with its own ending payload.
const OptionActionEndBranch OptionActionType = "end_branch"

// OptionAction is an action that replaces edge traversal for an option.
type OptionAction struct {
	Type   OptionActionType `json:"type" yaml:"type" mapstructure:"type"`
	Ending *EndingPayload   `json:"ending,omitempty" yaml:"ending,omitempty" mapstructure:"ending"`
}

// ChoiceOption is one option of a choice. Option i is bound to slot OptionSlot(i).
type ChoiceOption struct {
	ID        string        `json:"id" yaml:"id" mapstructure:"id"`
	Text      string        `json:"text" yaml:"text" mapstructure:"text"`
	VisibleIf string        `json:"visibleIf,omitempty" yaml:"visibleIf,omitempty" mapstructure:"visibleIf"`
	Action    *OptionAction `json:"action,omitempty" yaml:"action,omitempty" mapstructure:"action"`
}

// ChoicePayload is the payload of choice nodes (and inline scene choices).
type ChoicePayload struct {
	PromptText string         `json:"promptText,omitempty" yaml:"promptText,omitempty" mapstructure:"promptText"`
	Options    []ChoiceOption `json:"options" yaml:"options" mapstructure:"options"`
	Layout     ChoiceLayout   `json:"layout,omitempty" yaml:"layout,omitempty" mapstructure:"layout"`
}

func (p *ChoicePayload) clone() *ChoicePayload {
	if p == nil {
		return nil
	}
	c := *p
	c.Options = make([]ChoiceOption, len(p.Options))
	for i, opt := range p.Options {
		c.Options[i] = opt
		if opt.Action != nil {
			a := *opt.Action
			a.Ending = opt.Action.Ending.clone()
			c.Options[i].Action = &a
		}
	}
	return &c
}

// BranchCondition is one guarded output of a branch node.
type BranchCondition struct {
	ID         string `json:"id" yaml:"id" mapstructure:"id"`
	Expression string `json:"expression" yaml:"expression" mapstructure:"expression"`
	Priority   int    `json:"priority" yaml:"priority" mapstructure:"priority"`
}

// BranchPayload is the payload of branch nodes.
type BranchPayload struct {
	Conditions         []BranchCondition `json:"conditions" yaml:"conditions" mapstructure:"conditions"`
	DefaultEdgePresent bool              `json:"defaultEdgePresent" yaml:"defaultEdgePresent" mapstructure:"defaultEdgePresent"`
}

func (p *BranchPayload) clone() *BranchPayload {
	if p == nil {
		return nil
	}
	c := *p
	c.Conditions = append([]BranchCondition(nil), p.Conditions...)
	return &c
}

// EndingType classifies an ending.
type EndingType string

const (
	EndingTrue      EndingType = "TRUE"
	EndingGood      EndingType = "GOOD"
	EndingNormal    EndingType = "NORMAL"
	EndingBad       EndingType = "BAD"
	EndingSecret    EndingType = "SECRET"
	EndingAlternate EndingType = "ALTERNATE"
	EndingJoke      EndingType = "JOKE"
)

// EndingPayload is the payload of ending nodes. UnlockCondition decides
// whether reaching the ending counts as unlocking it; it never blocks the
// ending itself. An empty condition always unlocks.
type EndingPayload struct {
	EndingType      EndingType `json:"endingType" yaml:"endingType" mapstructure:"endingType"`
	Title           string     `json:"title" yaml:"title" mapstructure:"title"`
	Description     string     `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	UnlockCondition string     `json:"unlockCondition,omitempty" yaml:"unlockCondition,omitempty" mapstructure:"unlockCondition"`
}

func (p *EndingPayload) clone() *EndingPayload {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// ModifierOperation names a variable mutation.
type ModifierOperation string

const (
	OpSet       ModifierOperation = "set"
	OpAdd       ModifierOperation = "add"
	OpSubtract  ModifierOperation = "subtract"
	OpIncrement ModifierOperation = "increment"
	OpDecrement ModifierOperation = "decrement"
	OpToggle    ModifierOperation = "toggle"
	OpPush      ModifierOperation = "push"
	OpPop       ModifierOperation = "pop"
)

// VariableOperation is one step of a variable modifier.
// The operand is Value, or the current value of ValueFrom when it is set.
type VariableOperation struct {
	Variable  string            `json:"variableName" yaml:"variableName" mapstructure:"variableName"`
	Operation ModifierOperation `json:"operation" yaml:"operation" mapstructure:"operation"`
	Value     any               `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
	ValueFrom string            `json:"valueFromVariableName,omitempty" yaml:"valueFromVariableName,omitempty" mapstructure:"valueFromVariableName"`
}

// ModifierPayload is the payload of variable_modifier nodes.
type ModifierPayload struct {
	Operations []VariableOperation `json:"operations" yaml:"operations" mapstructure:"operations"`
}

func (p *ModifierPayload) clone() *ModifierPayload {
	if p == nil {
		return nil
	}
	c := *p
	c.Operations = make([]VariableOperation, len(p.Operations))
	for i, op := range p.Operations {
		c.Operations[i] = op
		c.Operations[i].Value = CloneValue(op.Value)
	}
	return &c
}

// CommentPayload holds author annotation text.
type CommentPayload struct {
	Text  string `json:"text" yaml:"text" mapstructure:"text"`
	Color string `json:"color,omitempty" yaml:"color,omitempty" mapstructure:"color"`
}
