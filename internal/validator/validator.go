// Package validator performs advisory structural validation of story graphs.
// Validation never mutates the graph and is not run by the playback runtime.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/condition"
	"github.com/aretw0/arbor/pkg/domain"
)

// Severity ranks an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code identifies the kind of an issue.
type Code string

const (
	CodeEmptyGraph          Code = "empty_graph"
	CodeStartCount          Code = "start_count"
	CodeStartPointer        Code = "start_pointer"
	CodeInvalidPayload      Code = "invalid_payload"
	CodeDanglingEdge        Code = "dangling_edge"
	CodeSlotCollision       Code = "slot_collision"
	CodeInvalidSlot         Code = "invalid_slot"
	CodeEndingOutgoing      Code = "ending_outgoing"
	CodeCommentEdge         Code = "comment_edge"
	CodeUnreachable         Code = "unreachable"
	CodeMissingSceneRef     Code = "missing_scene_ref"
	CodeConditionSyntax     Code = "condition_syntax"
	CodeUndefinedVariable   Code = "undefined_variable"
	CodeDuplicateVariable   Code = "duplicate_variable"
	CodeInvalidVariable     Code = "invalid_variable"
	CodeMissingSuccessor    Code = "missing_successor"
	CodeDefaultFlagMismatch Code = "default_flag_mismatch"
)

// Issue is one finding of a validation pass.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	NodeID   string   `json:"nodeId,omitempty"`
	EdgeID   string   `json:"edgeId,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	loc := ""
	switch {
	case i.EdgeID != "":
		loc = " edge " + i.EdgeID
	case i.NodeID != "":
		loc = " node " + i.NodeID
	}
	return fmt.Sprintf("[%s]%s: %s", i.Code, loc, i.Message)
}

// Report collects the issues of a graph.
type Report struct {
	Issues []Issue `json:"issues"`
}

// Valid reports whether the report holds no errors. Warnings are allowed.
func (r Report) Valid() bool {
	return len(r.Errors()) == 0
}

// Errors returns the error-severity issues.
func (r Report) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns the warning-severity issues.
func (r Report) Warnings() []Issue { return r.filter(SeverityWarning) }

// Has reports whether an issue with the given code was found.
func (r Report) Has(code Code) bool {
	for _, i := range r.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

// Err folds the error-severity issues into a single error, or nil.
func (r Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, len(errs))
	for i, issue := range errs {
		lines[i] = issue.String()
	}
	return fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(lines, "\n- "))
}

func (r Report) filter(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

type checker struct {
	g      *domain.StoryGraph
	issues []Issue
}

func (c *checker) errorf(code Code, nodeID, edgeID, format string, args ...any) {
	c.issues = append(c.issues, Issue{SeverityError, code, nodeID, edgeID, fmt.Sprintf(format, args...)})
}

func (c *checker) warnf(code Code, nodeID, edgeID, format string, args ...any) {
	c.issues = append(c.issues, Issue{SeverityWarning, code, nodeID, edgeID, fmt.Sprintf(format, args...)})
}

// Validate checks g and returns every issue found, errors first.
func Validate(g *domain.StoryGraph) Report {
	c := &checker{g: g}
	if g == nil || len(g.Nodes) == 0 {
		c.errorf(CodeEmptyGraph, "", "", "graph has no nodes")
		return Report{Issues: c.issues}
	}

	c.checkStart()
	c.checkVariables()
	for _, id := range g.NodeIDs() {
		c.checkNode(g.Nodes[id])
	}
	c.checkEdges()
	c.checkReachability()

	sort.SliceStable(c.issues, func(i, j int) bool {
		return c.issues[i].Severity == SeverityError && c.issues[j].Severity != SeverityError
	})
	return Report{Issues: c.issues}
}

func (c *checker) checkStart() {
	starts := c.g.StartNodes()
	switch len(starts) {
	case 0:
		c.errorf(CodeStartCount, "", "", "graph has no start node")
	case 1:
		if c.g.StartNodeID != starts[0] {
			c.errorf(CodeStartPointer, starts[0], "", "startNodeId %q does not name the start node %q", c.g.StartNodeID, starts[0])
		}
	default:
		c.errorf(CodeStartCount, "", "", "graph has %d start nodes: %s", len(starts), strings.Join(starts, ", "))
	}
}

func (c *checker) checkVariables() {
	seen := make(map[string]bool)
	for _, v := range c.g.Variables {
		if v.Name == "" {
			c.errorf(CodeInvalidVariable, "", "", "variable %s has no name", v.ID)
			continue
		}
		if seen[v.Name] {
			c.errorf(CodeDuplicateVariable, "", "", "variable %s is defined more than once", v.Name)
		}
		seen[v.Name] = true
		if err := v.CheckInitialValue(); err != nil {
			c.errorf(CodeInvalidVariable, "", "", "%v", err)
		}
	}
}

func (c *checker) checkNode(n *domain.GraphNode) {
	if err := n.CheckPayload(); err != nil {
		c.errorf(CodeInvalidPayload, n.ID, "", "%v", err)
		return
	}

	switch n.Type {
	case domain.NodeTypeScene:
		if n.Scene.SceneRef == "" {
			c.errorf(CodeMissingSceneRef, n.ID, "", "scene node has no sceneRef")
		}
		if n.Scene.Choice != nil {
			c.checkChoice(n, n.Scene.Choice)
		}
		if n.Scene.Ending != nil {
			c.checkExpression(n.ID, n.Scene.Ending.UnlockCondition)
		}
	case domain.NodeTypeChoice:
		c.checkChoice(n, n.Choice)
	case domain.NodeTypeBranch:
		seen := make(map[string]bool)
		for _, cond := range n.Branch.Conditions {
			if cond.ID == "" {
				c.errorf(CodeInvalidPayload, n.ID, "", "branch condition has no id")
			} else if seen[cond.ID] {
				c.errorf(CodeSlotCollision, n.ID, "", "condition id %s is used twice", cond.ID)
			}
			seen[cond.ID] = true
			c.checkExpression(n.ID, cond.Expression)
		}
		_, hasDefault := c.g.EdgeFrom(n.ID, domain.DefaultSlot)
		if hasDefault != n.Branch.DefaultEdgePresent {
			c.warnf(CodeDefaultFlagMismatch, n.ID, "", "defaultEdgePresent is %t but default edge present is %t", n.Branch.DefaultEdgePresent, hasDefault)
		}
	case domain.NodeTypeEnding:
		if len(c.g.Outgoing(n.ID)) > 0 {
			c.warnf(CodeEndingOutgoing, n.ID, "", "ending node has outgoing edges; they are never followed")
		}
		c.checkExpression(n.ID, n.Ending.UnlockCondition)
	case domain.NodeTypeVariableModifier:
		for _, op := range n.Modifier.Operations {
			if op.ValueFrom != "" {
				c.checkVariableRef(n.ID, op.ValueFrom)
			}
			c.checkVariableRef(n.ID, op.Variable)
		}
		fallthrough
	case domain.NodeTypeStart:
		if _, ok := c.g.EdgeFrom(n.ID, domain.DefaultSlot); !ok {
			c.warnf(CodeMissingSuccessor, n.ID, "", "%s node has no outgoing edge", n.Type)
		}
	case domain.NodeTypeComment:
		for _, e := range append(c.g.Outgoing(n.ID), c.g.Incoming(n.ID)...) {
			c.errorf(CodeCommentEdge, n.ID, e.ID, "comment nodes cannot be connected")
		}
	}
}

func (c *checker) checkChoice(n *domain.GraphNode, choice *domain.ChoicePayload) {
	if len(choice.Options) == 0 {
		c.warnf(CodeMissingSuccessor, n.ID, "", "choice has no options")
	}
	for i, opt := range choice.Options {
		c.checkExpression(n.ID, opt.VisibleIf)
		if opt.Action != nil && opt.Action.Type == domain.OptionActionEndBranch {
			continue
		}
		if _, ok := c.g.EdgeFrom(n.ID, domain.OptionSlot(i)); !ok {
			c.warnf(CodeMissingSuccessor, n.ID, "", "option %d (%s) has no outgoing edge", i, opt.Text)
		}
	}
}

func (c *checker) checkExpression(nodeID, expr string) {
	if strings.TrimSpace(expr) == "" {
		return
	}
	p, err := condition.Compile(expr)
	if err != nil {
		c.errorf(CodeConditionSyntax, nodeID, "", "%v", err)
		return
	}
	for _, name := range p.Variables() {
		c.checkVariableRef(nodeID, name)
	}
}

func (c *checker) checkVariableRef(nodeID, name string) {
	if _, ok := c.g.Variable(name); !ok {
		c.warnf(CodeUndefinedVariable, nodeID, "", "variable %s is not defined by the story", name)
	}
}

func (c *checker) checkEdges() {
	slots := make(map[string]string)
	for _, e := range c.g.Edges {
		src, srcOK := c.g.Nodes[e.SourceID]
		_, tgtOK := c.g.Nodes[e.TargetID]
		if !srcOK || !tgtOK {
			c.errorf(CodeDanglingEdge, "", e.ID, "edge %s -> %s references a missing node", e.SourceID, e.TargetID)
			continue
		}
		if src.Type == domain.NodeTypeEnding || src.Type == domain.NodeTypeComment {
			continue // reported per node
		}
		if !domain.ValidSlot(src, e.SourceSlot) {
			c.errorf(CodeInvalidSlot, src.ID, e.ID, "slot %q does not exist on %s node", e.SourceSlot, src.Type)
		}
		key := e.SourceID + "\x00" + e.SourceSlot
		if prev, dup := slots[key]; dup {
			c.errorf(CodeSlotCollision, src.ID, e.ID, "slot %q already used by edge %s", e.SourceSlot, prev)
			continue
		}
		slots[key] = e.ID
	}
}

// checkReachability crawls from the start node; orphans are warnings.
func (c *checker) checkReachability() {
	start, ok := c.g.Nodes[c.g.StartNodeID]
	if !ok {
		return
	}
	visited := map[string]bool{start.ID: true}
	queue := []string{start.ID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if n := c.g.Nodes[current]; n.Type == domain.NodeTypeEnding {
			continue
		}
		for _, e := range c.g.Outgoing(current) {
			if _, exists := c.g.Nodes[e.TargetID]; exists && !visited[e.TargetID] {
				visited[e.TargetID] = true
				queue = append(queue, e.TargetID)
			}
		}
	}
	for _, id := range c.g.NodeIDs() {
		if !visited[id] && c.g.Nodes[id].Type != domain.NodeTypeComment {
			c.warnf(CodeUnreachable, id, "", "node is not reachable from the start node")
		}
	}
}
