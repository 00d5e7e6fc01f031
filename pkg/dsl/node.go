package dsl

import "github.com/aretw0/arbor/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    *domain.GraphNode
	builder *Builder
}

func (n *NodeBuilder) kind(t domain.NodeType) {
	if n.node.Type != "" && n.node.Type != t {
		n.builder.fail("node %s: cannot change type %s to %s", n.node.ID, n.node.Type, t)
		return
	}
	n.node.Type = t
}

// At sets the canvas position.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	n.node.Position = domain.Position{X: x, Y: y}
	return n
}

// Title sets the node title.
func (n *NodeBuilder) Title(title string) *NodeBuilder {
	n.node.Title = title
	return n
}

// Start marks the node as the unit's entry point.
func (n *NodeBuilder) Start() *NodeBuilder {
	n.kind(domain.NodeTypeStart)
	if n.builder.graph.StartNodeID == "" {
		n.builder.graph.StartNodeID = n.node.ID
	}
	return n
}

// Scene makes the node present the scene with the given reference.
func (n *NodeBuilder) Scene(sceneRef string) *NodeBuilder {
	n.kind(domain.NodeTypeScene)
	n.node.Scene = &domain.ScenePayload{SceneRef: sceneRef}
	n.builder.SceneContent(sceneRef)
	return n
}

func (n *NodeBuilder) text(t domain.TextType, speaker, content string) *NodeBuilder {
	if n.node.Scene == nil {
		n.builder.fail("node %s: text added before Scene", n.node.ID)
		return n
	}
	s := n.builder.SceneContent(n.node.Scene.SceneRef)
	s.Texts = append(s.Texts, domain.TextContent{Type: t, SpeakerRef: speaker, Content: content})
	return n
}

// Narrate appends a narration unit to the node's scene.
func (n *NodeBuilder) Narrate(content string) *NodeBuilder {
	return n.text(domain.TextNarration, "", content)
}

// Say appends a dialogue unit to the node's scene.
func (n *NodeBuilder) Say(speaker, content string) *NodeBuilder {
	return n.text(domain.TextDialogue, speaker, content)
}

// System appends a system message to the node's scene.
func (n *NodeBuilder) System(content string) *NodeBuilder {
	return n.text(domain.TextSystemMessage, "", content)
}

// Background sets the backdrop of the node's scene.
func (n *NodeBuilder) Background(assetRef string) *NodeBuilder {
	if n.node.Scene == nil {
		n.builder.fail("node %s: background set before Scene", n.node.ID)
		return n
	}
	n.builder.SceneContent(n.node.Scene.SceneRef).Background = domain.Background{AssetRef: assetRef}
	return n
}

// Choice makes the node a standalone choice. On a scene node it attaches an
// inline choice shown once the scene is exhausted.
func (n *NodeBuilder) Choice(prompt string) *NodeBuilder {
	payload := &domain.ChoicePayload{PromptText: prompt, Layout: domain.LayoutVertical}
	if n.node.Type == domain.NodeTypeScene {
		n.node.Scene.Choice = payload
		return n
	}
	n.kind(domain.NodeTypeChoice)
	n.node.Choice = payload
	return n
}

func (n *NodeBuilder) choice() *domain.ChoicePayload {
	if n.node.Choice != nil {
		return n.node.Choice
	}
	if n.node.Scene != nil && n.node.Scene.Choice != nil {
		return n.node.Scene.Choice
	}
	n.builder.fail("node %s: option added before Choice", n.node.ID)
	return nil
}

// Option appends an always visible option leading to target.
func (n *NodeBuilder) Option(text, target string) *NodeBuilder {
	return n.OptionIf(text, "", target)
}

// OptionIf appends an option shown only while visibleIf holds.
func (n *NodeBuilder) OptionIf(text, visibleIf, target string) *NodeBuilder {
	c := n.choice()
	if c == nil {
		return n
	}
	index := len(c.Options)
	c.Options = append(c.Options, domain.ChoiceOption{ID: domain.OptionSlot(index), Text: text, VisibleIf: visibleIf})
	if target != "" {
		n.builder.connect(n.node.ID, domain.OptionSlot(index), target, text)
	}
	return n
}

// OptionEnd appends an option that ends the unit with the given ending.
func (n *NodeBuilder) OptionEnd(text string, ending domain.EndingPayload) *NodeBuilder {
	c := n.choice()
	if c == nil {
		return n
	}
	c.Options = append(c.Options, domain.ChoiceOption{
		ID:     domain.OptionSlot(len(c.Options)),
		Text:   text,
		Action: &domain.OptionAction{Type: domain.OptionActionEndBranch, Ending: &ending},
	})
	return n
}

// Branch makes the node a conditional router.
func (n *NodeBuilder) Branch() *NodeBuilder {
	n.kind(domain.NodeTypeBranch)
	if n.node.Branch == nil {
		n.node.Branch = &domain.BranchPayload{}
	}
	return n
}

// When adds a condition to a branch node, evaluated in ascending priority.
func (n *NodeBuilder) When(id, expression string, priority int, target string) *NodeBuilder {
	n.Branch()
	n.node.Branch.Conditions = append(n.node.Branch.Conditions, domain.BranchCondition{ID: id, Expression: expression, Priority: priority})
	if target != "" {
		n.builder.connect(n.node.ID, id, target, expression)
	}
	return n
}

// Modify makes the node a variable modifier.
func (n *NodeBuilder) Modify() *NodeBuilder {
	n.kind(domain.NodeTypeVariableModifier)
	if n.node.Modifier == nil {
		n.node.Modifier = &domain.ModifierPayload{}
	}
	return n
}

// Apply appends an operation to a variable modifier node.
func (n *NodeBuilder) Apply(op domain.ModifierOperation, variable string, value any) *NodeBuilder {
	n.Modify()
	n.node.Modifier.Operations = append(n.node.Modifier.Operations, domain.VariableOperation{
		Variable:  variable,
		Operation: op,
		Value:     domain.CloneValue(value),
	})
	return n
}

// Set is Apply with the set operation.
func (n *NodeBuilder) Set(variable string, value any) *NodeBuilder {
	return n.Apply(domain.OpSet, variable, value)
}

// Ending makes the node terminal. On a scene node it attaches an inline ending.
func (n *NodeBuilder) Ending(t domain.EndingType, title string) *NodeBuilder {
	payload := &domain.EndingPayload{EndingType: t, Title: title}
	if n.node.Type == domain.NodeTypeScene {
		n.node.Scene.Ending = payload
		return n
	}
	n.kind(domain.NodeTypeEnding)
	n.node.Ending = payload
	n.node.Title = title
	return n
}

// UnlockIf sets the unlock condition of the node's ending.
func (n *NodeBuilder) UnlockIf(expression string) *NodeBuilder {
	switch {
	case n.node.Ending != nil:
		n.node.Ending.UnlockCondition = expression
	case n.node.Scene != nil && n.node.Scene.Ending != nil:
		n.node.Scene.Ending.UnlockCondition = expression
	default:
		n.builder.fail("node %s: unlock condition set before Ending", n.node.ID)
	}
	return n
}

// Comment makes the node an author annotation.
func (n *NodeBuilder) Comment(text string) *NodeBuilder {
	n.kind(domain.NodeTypeComment)
	n.node.Comment = &domain.CommentPayload{Text: text}
	return n
}

// Go adds the default edge to target.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.builder.connect(n.node.ID, domain.DefaultSlot, target, "")
	return n
}
