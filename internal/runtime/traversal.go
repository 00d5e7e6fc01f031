package runtime

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/aretw0/arbor/pkg/condition"
	"github.com/aretw0/arbor/pkg/domain"
)

const reasonAmbiguous = "scene exhausted without successor, choice or ending"

func (s *Session) advanceLocked() {
	if s.status != domain.StatusPresentingContent || s.scene == nil {
		return
	}
	if s.current != nil && !s.current.complete() {
		s.completeRevealLocked()
		return
	}
	if s.sceneIndex < len(s.scene.Texts) {
		s.showLocked(s.sceneIndex, true)
		s.sceneIndex++
		return
	}
	s.exitSceneLocked()
}

// showLocked makes the unit at index current. When record is false the unit
// is restored silently (resume) instead of presented.
func (s *Session) showLocked(index int, record bool) {
	text := s.scene.Texts[index]
	s.current = &presented{index: index, text: text, runes: utf8.RuneCountInString(text.Content)}
	if !record {
		return
	}
	if text.Recorded() {
		s.history.add(domain.HistoryEntry{UnitID: s.unitID, NodeID: s.node.ID, Index: index, Text: text})
	}
	if s.pacing.TextSpeed <= 0 || s.current.runes == 0 {
		s.completeRevealLocked()
		return
	}
	s.emitRevealProgressLocked()
	s.scheduleRevealLocked()
}

func (s *Session) contentEvent(t domain.EventType) *domain.ContentEvent {
	return &domain.ContentEvent{
		EventBase: s.base(t),
		NodeID:    s.node.ID,
		Index:     s.current.index,
		Text:      s.current.text,
		Revealed:  s.current.revealed,
		Complete:  s.current.complete(),
	}
}

func (s *Session) completeRevealLocked() {
	s.stopRevealLocked()
	s.current.revealed = s.current.runes
	if hook := s.hooks.OnContentRevealed; hook != nil {
		ev := s.contentEvent(domain.EventContentRevealed)
		s.emit(func(ctx context.Context) { hook(ctx, ev) })
	}
}

func (s *Session) emitRevealProgressLocked() {
	if hook := s.hooks.OnRevealProgress; hook != nil {
		ev := s.contentEvent(domain.EventRevealProgress)
		s.emit(func(ctx context.Context) { hook(ctx, ev) })
	}
}

// enterLocked walks from id through silent nodes until the session pauses,
// ends or stalls.
func (s *Session) enterLocked(id string) {
	s.clearNodeLocked()
	g := s.bundle.Graph
	for hops := 0; ; hops++ {
		if hops >= s.maxHops {
			s.stallLocked(id, fmt.Sprintf("no pause after %d silent nodes", hops), domain.ErrNoViablePath)
			return
		}
		node, ok := g.Node(id)
		if !ok {
			s.stallLocked(id, "node does not exist", domain.ErrDanglingReference)
			return
		}
		s.visitLocked(node.ID)

		switch node.Type {
		case domain.NodeTypeStart:
			next, ok := s.followLocked(node, domain.DefaultSlot, domain.ErrNoViablePath)
			if !ok {
				return
			}
			id = next
		case domain.NodeTypeVariableModifier:
			s.modifyLocked(node)
			next, ok := s.followLocked(node, domain.DefaultSlot, domain.ErrNoViablePath)
			if !ok {
				return
			}
			id = next
		case domain.NodeTypeBranch:
			next, ok := s.branchLocked(node)
			if !ok {
				return
			}
			id = next
		case domain.NodeTypeScene:
			s.presentSceneLocked(node)
			return
		case domain.NodeTypeChoice:
			s.offerLocked(node, node.Choice)
			return
		case domain.NodeTypeEnding:
			s.endLocked(node, node.Ending, "")
			return
		case domain.NodeTypeComment:
			s.stallLocked(node.ID, "traversal reached a comment node", domain.ErrNoViablePath)
			return
		default:
			s.stallLocked(node.ID, fmt.Sprintf("unknown node type %q", node.Type), domain.ErrInvalidNode)
			return
		}
	}
}

func (s *Session) visitLocked(id string) {
	s.trail = append(s.trail, id)
	if over := len(s.trail) - s.trailCap; over > 0 {
		s.trail = append(s.trail[:0:0], s.trail[over:]...)
	}
}

func (s *Session) clearNodeLocked() {
	s.stopTimersLocked()
	s.node = nil
	s.scene = nil
	s.sceneIndex = 0
	s.current = nil
	s.choice = nil
}

// followLocked resolves the edge out of node through slot, stalling with
// cause if absent.
func (s *Session) followLocked(node *domain.GraphNode, slot string, cause error) (string, bool) {
	edge, ok := s.bundle.Graph.EdgeFrom(node.ID, slot)
	if !ok {
		reason := "no outgoing edge"
		if slot != domain.DefaultSlot {
			reason = fmt.Sprintf("no edge on slot %q", slot)
		}
		s.stallLocked(node.ID, reason, cause)
		return "", false
	}
	return edge.TargetID, true
}

func (s *Session) modifyLocked(node *domain.GraphNode) {
	if node.Modifier == nil {
		return
	}
	next, errs := condition.ApplyAll(node.Modifier.Operations, s.vars)
	for _, err := range errs {
		s.logger.Warn("variable operation skipped", "node_id", node.ID, "err", err)
	}
	s.vars = next
}

// branchLocked picks the first condition, by ascending priority, that holds.
// Conditions that fail to evaluate count as false.
func (s *Session) branchLocked(node *domain.GraphNode) (string, bool) {
	var conds []domain.BranchCondition
	if node.Branch != nil {
		conds = append(conds, node.Branch.Conditions...)
	}
	sort.SliceStable(conds, func(i, j int) bool { return conds[i].Priority < conds[j].Priority })

	for _, c := range conds {
		ok, err := s.evaluator.Evaluate(c.Expression, s.vars)
		if err != nil {
			s.logger.Warn("branch condition failed", "err", condition.AtNode(err, node.ID, c.Expression), "condition_id", c.ID)
			continue
		}
		if !ok {
			continue
		}
		edge, found := s.bundle.Graph.EdgeFrom(node.ID, c.ID)
		if !found {
			s.stallLocked(node.ID, fmt.Sprintf("condition %q holds but has no edge", c.ID), domain.ErrDanglingReference)
			return "", false
		}
		s.logger.Debug("branch resolved", "node_id", node.ID, "condition_id", c.ID)
		return edge.TargetID, true
	}

	if edge, ok := s.bundle.Graph.EdgeFrom(node.ID, domain.DefaultSlot); ok {
		return edge.TargetID, true
	}
	s.stallLocked(node.ID, "no condition holds and no default edge", domain.ErrNoViablePath)
	return "", false
}

func (s *Session) presentSceneLocked(node *domain.GraphNode) bool {
	if node.Scene == nil {
		s.stallLocked(node.ID, "scene node has no scene reference", domain.ErrDanglingReference)
		return false
	}
	scene, ok := s.bundle.Scenes[node.Scene.SceneRef]
	if !ok {
		s.stallLocked(node.ID, fmt.Sprintf("scene %q not found", node.Scene.SceneRef), domain.ErrDanglingReference)
		return false
	}
	s.node = node
	s.scene = scene
	s.sceneIndex = 0
	s.status = domain.StatusPresentingContent
	if hook := s.hooks.OnSceneChanged; hook != nil {
		ev := &domain.SceneEvent{EventBase: s.base(domain.EventSceneChanged), NodeID: node.ID, Scene: scene.Stage()}
		s.emit(func(ctx context.Context) { hook(ctx, ev) })
	}
	return true
}

// exitSceneLocked resolves where an exhausted scene leads: the default
// successor, then an inline choice, then an inline ending. The final unit of
// a single ending story closes with a synthesized NORMAL ending.
func (s *Session) exitSceneLocked() {
	node := s.node
	if edge, ok := s.bundle.Graph.EdgeFrom(node.ID, domain.DefaultSlot); ok {
		s.enterLocked(edge.TargetID)
		return
	}
	if node.Scene.Choice != nil {
		s.offerLocked(node, node.Scene.Choice)
		return
	}
	if node.Scene.Ending != nil {
		s.endLocked(node, node.Scene.Ending, "")
		return
	}
	if s.story != nil && s.story.SingleEnding() && s.story.IsFinalUnit(s.unitID) {
		s.endLocked(node, &domain.EndingPayload{EndingType: domain.EndingNormal}, "")
		return
	}
	s.endLocked(node, nil, reasonAmbiguous)
}

// offerLocked presents the options whose visibility condition holds.
func (s *Session) offerLocked(node *domain.GraphNode, payload *domain.ChoicePayload) {
	if payload == nil {
		s.stallLocked(node.ID, "choice node has no options", domain.ErrNoViablePath)
		return
	}
	var offered []domain.OfferedOption
	for i, opt := range payload.Options {
		ok, err := s.evaluator.Evaluate(opt.VisibleIf, s.vars)
		if err != nil {
			s.logger.Warn("option condition failed", "err", condition.AtNode(err, node.ID, opt.VisibleIf), "option", i)
			continue
		}
		if ok {
			offered = append(offered, domain.OfferedOption{Index: i, Option: opt})
		}
	}
	if len(offered) == 0 {
		s.stallLocked(node.ID, "no option is visible", domain.ErrNoViablePath)
		return
	}

	s.stopTimersLocked()
	s.node = node
	s.current = nil
	s.choice = &pendingChoice{node: node, payload: payload, offered: offered}
	s.status = domain.StatusAwaitingChoice
	if hook := s.hooks.OnChoicesAvailable; hook != nil {
		ev := &domain.ChoiceEvent{
			EventBase: s.base(domain.EventChoicesAvailable),
			NodeID:    node.ID,
			Prompt:    payload.PromptText,
			Layout:    payload.Layout,
			Options:   append([]domain.OfferedOption(nil), offered...),
		}
		s.emit(func(ctx context.Context) { hook(ctx, ev) })
	}
}

func (s *Session) chooseLocked(index int, opt domain.ChoiceOption) {
	node := s.choice.node
	s.choice = nil
	s.logger.Debug("option chosen", "session_id", s.id, "node_id", node.ID, "option", index)

	if opt.Action != nil && opt.Action.Type == domain.OptionActionEndBranch {
		ending := opt.Action.Ending
		if ending == nil {
			ending = &domain.EndingPayload{EndingType: domain.EndingNormal}
		}
		s.endLocked(node, ending, "")
		return
	}
	next, ok := s.followLocked(node, domain.OptionSlot(index), domain.ErrDanglingReference)
	if !ok {
		return
	}
	s.enterLocked(next)
}

// endLocked terminates the current unit. In a single ending story that has
// more units the session crosses the episode boundary instead.
func (s *Session) endLocked(node *domain.GraphNode, ending *domain.EndingPayload, reason string) {
	s.stopTimersLocked()
	s.node = node
	s.scene = nil
	s.current = nil
	s.choice = nil
	if s.story != nil && s.story.SingleEnding() && !s.story.IsFinalUnit(s.unitID) {
		s.status = domain.StatusLoading
		s.boundary = true
		s.logger.Debug("unit finished", "session_id", s.id, "unit_id", s.unitID, "node_id", node.ID)
		return
	}

	s.status = domain.StatusEnded
	if ending != nil {
		e := *ending
		s.ending = &e
	}
	s.unlocked = s.unlockedLocked(node.ID, s.ending)
	if reason != "" {
		s.logger.Warn("story ended without an ending", "session_id", s.id, "node_id", node.ID, "err", domain.ErrAmbiguousTermination)
	}
	if hook := s.hooks.OnEnded; hook != nil {
		ev := &domain.EndedEvent{EventBase: s.base(domain.EventEnded), NodeID: node.ID, Ending: s.ending, Unlocked: s.unlocked, Reason: reason}
		s.emit(func(ctx context.Context) { hook(ctx, ev) })
	}
}

// unlockedLocked evaluates an ending's unlock condition against the current
// store. A failing condition is logged and counts as locked.
func (s *Session) unlockedLocked(nodeID string, ending *domain.EndingPayload) bool {
	if ending == nil {
		return false
	}
	if ending.UnlockCondition == "" {
		return true
	}
	ok, err := s.evaluator.Evaluate(ending.UnlockCondition, s.vars)
	if err != nil {
		s.logger.Warn("unlock condition failed", "err", condition.AtNode(err, nodeID, ending.UnlockCondition))
		return false
	}
	return ok
}

func (s *Session) stallLocked(nodeID, reason string, err error) {
	s.stopTimersLocked()
	s.current = nil
	s.choice = nil
	s.status = domain.StatusStalled
	s.stall = &domain.StallError{UnitID: s.unitID, NodeID: nodeID, Reason: reason, Err: err}
	s.logger.Error("session stalled", "session_id", s.id, "err", s.stall)
	if hook := s.hooks.OnStalled; hook != nil {
		stall := s.stall
		ev := &domain.StalledEvent{EventBase: s.base(domain.EventStalled), NodeID: nodeID, Reason: reason, Err: stall}
		s.emit(func(ctx context.Context) { hook(ctx, ev) })
	}
}
