package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
)

// SessionRequest is the body of POST /sessions. A SessionID with stored
// progress resumes that session.
type SessionRequest struct {
	SessionID string               `json:"sessionId,omitempty"`
	ReaderID  string               `json:"readerId"`
	StoryID   string               `json:"storyId,omitempty"`
	UnitID    string               `json:"unitId,omitempty"`
	Variables domain.VariableStore `json:"variables,omitempty"`
}

// ChooseRequest is the body of POST /sessions/{id}/choose.
type ChooseRequest struct {
	Index int `json:"index"`
}

func sessionParam(r *http.Request) string { return chi.URLParam(r, "id") }

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.StoryID == "" && req.UnitID == "" && req.SessionID == "" {
		writeError(w, errors.Join(errBadRequest, errors.New("storyId or unitId is required")))
		return
	}
	if req.SessionID != "" {
		if live, err := s.sessions.Get(req.SessionID); err == nil {
			writeJSON(w, http.StatusOK, live.View())
			return
		}
	}

	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	hooks := arbor.WithReadHooks(s.hub.Hooks(id))

	var (
		sess *arbor.Session
		err  error
	)
	if req.SessionID != "" {
		sess, err = s.engine.Resume(r.Context(), id, hooks)
	}
	if req.SessionID == "" || errors.Is(err, domain.ErrProgressNotFound) {
		opts := []arbor.ReadOption{hooks, arbor.WithSessionID(id)}
		if req.UnitID != "" {
			opts = append(opts, arbor.WithUnit(req.UnitID))
		}
		if req.Variables != nil {
			opts = append(opts, arbor.WithVariables(req.Variables))
		}
		sess, err = s.engine.Read(r.Context(), req.ReaderID, req.StoryID, opts...)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	s.sessions.Register(id, sess)
	s.metrics.SessionOpened()
	writeJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(sessionParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(sessionParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.RequestAdvance(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) choose(w http.ResponseWriter, r *http.Request) {
	var req ChooseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.sessions.Get(sessionParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.Choose(r.Context(), req.Index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// closeSession ends a live session. ?forget=true also deletes its progress.
func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	id := sessionParam(r)
	if _, err := s.sessions.Get(id); err != nil {
		writeError(w, err)
		return
	}
	if err := s.dropSession(id); err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("forget") == "true" {
		if err := s.engine.Forget(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dropSession(id string) error {
	sess, ok := s.sessions.Remove(id)
	if !ok {
		return nil
	}
	s.metrics.SessionClosed()
	s.hub.Close(id)
	return sess.Close()
}
