package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/authoring"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
)

// NodeRequest is the body of POST /units/{unit}/nodes.
type NodeRequest struct {
	Type     domain.NodeType `json:"type"`
	Position domain.Position `json:"position"`
	Data     map[string]any  `json:"data,omitempty"`
}

// NodePatch is the body of PATCH /units/{unit}/nodes/{node}.
type NodePatch struct {
	Title      *string            `json:"title,omitempty"`
	Notes      *string            `json:"notes,omitempty"`
	Position   *domain.Position   `json:"position,omitempty"`
	Dimensions *domain.Dimensions `json:"dimensions,omitempty"`
	Data       map[string]any     `json:"data,omitempty"`
}

// EdgeRequest is the body of POST /units/{unit}/edges.
type EdgeRequest struct {
	SourceID string `json:"sourceNodeId"`
	Slot     string `json:"sourceSlot,omitempty"`
	TargetID string `json:"targetNodeId"`
}

// PlacementRequest is the body of POST /units/{unit}/placements.
// With Preview set only the proposal is returned.
type PlacementRequest struct {
	SourceID string          `json:"sourceNodeId"`
	Type     domain.NodeType `json:"type"`
	Data     map[string]any  `json:"data,omitempty"`
	Preview  bool            `json:"preview,omitempty"`
}

type idResponse struct {
	ID string `json:"id"`
}

func unitParam(r *http.Request) string { return chi.URLParam(r, "unit") }

// editor returns the open editor of a unit, opening it on first use.
func (s *Server) editor(ctx context.Context, unitID string) (*authoring.Editor, error) {
	s.editorMu.Lock()
	defer s.editorMu.Unlock()
	ed, err := s.editors.Get(unitID)
	if err == nil {
		return ed, nil
	}
	ed, err = s.engine.Edit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	s.editors.Register(unitID, ed)
	return ed, nil
}

// currentGraph prefers the open editor's unsaved graph over storage.
func (s *Server) currentGraph(ctx context.Context, unitID string) (*domain.StoryGraph, error) {
	if ed, err := s.editors.Get(unitID); err == nil {
		return ed.Graph(), nil
	}
	return s.engine.Inspect(ctx, unitID)
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.currentGraph(r.Context(), unitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// getMermaid renders the graph; ?session=id overlays that reader's trail.
func (s *Server) getMermaid(w http.ResponseWriter, r *http.Request) {
	g, err := s.currentGraph(r.Context(), unitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	var overlay *graph.Overlay
	if id := r.URL.Query().Get("session"); id != "" {
		overlay, err = s.trailOverlay(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(g, overlay)))
}

func (s *Server) trailOverlay(ctx context.Context, sessionID string) (*graph.Overlay, error) {
	if sess, err := s.sessions.Get(sessionID); err == nil {
		return &graph.Overlay{Visited: sess.Trail(), Current: sess.View().NodeID}, nil
	}
	p, err := s.engine.Sessions().Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &graph.Overlay{Visited: p.Trail, Current: p.NodeID}, nil
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	unitID := unitParam(r)
	if ed, err := s.editors.Get(unitID); err == nil {
		writeJSON(w, http.StatusOK, ed.Validate())
		return
	}
	report, err := s.engine.Validate(r.Context(), unitID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) createNode(w http.ResponseWriter, r *http.Request) {
	var req NodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ed, err := s.editor(r.Context(), unitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := ed.CreateNode(req.Type, req.Position, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) updateNode(w http.ResponseWriter, r *http.Request) {
	var req NodePatch
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ed, err := s.editor(r.Context(), unitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	nodeID := chi.URLParam(r, "node")
	if req.Position != nil {
		err = errors.Join(err, ed.MoveNode(nodeID, *req.Position))
	}
	if req.Dimensions != nil {
		err = errors.Join(err, ed.ResizeNode(nodeID, *req.Dimensions))
	}
	if req.Title != nil || req.Notes != nil || req.Data != nil {
		err = errors.Join(err, ed.UpdateNode(nodeID, authoring.NodeUpdate{
			Title: req.Title,
			Notes: req.Notes,
			Data:  req.Data,
		}))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	n, _ := ed.Graph().Node(nodeID)
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) removeNode(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editor(r.Context(), unitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ed.RemoveNode(chi.URLParam(r, "node")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	var req EdgeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ed, err := s.editor(r.Context(), unitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := ed.Connect(req.SourceID, req.Slot, req.TargetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editor(r.Context(), unitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ed.Disconnect(chi.URLParam(r, "edge")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) place(w http.ResponseWriter, r *http.Request) {
	var req PlacementRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ed, err := s.editor(r.Context(), unitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Preview {
		p, err := ed.GuidedPlacement(req.SourceID, req.Type)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}
	res, err := ed.Place(req.SourceID, req.Type, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// flush persists pending edits now. A unit without an open editor has
// nothing to flush.
func (s *Server) flush(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editors.Get(unitParam(r))
	if errors.Is(err, registry.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := ed.Flush(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
