package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aretw0/arbor/pkg/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	subscriberBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is one websocket frame sent to event subscribers.
type Message struct {
	Type  domain.EventType     `json:"type"`
	Event any                  `json:"event,omitempty"`
	Diff  *domain.ProgressDiff `json:"diff,omitempty"`
}

// Hub fans playback events out to the subscribers of each session.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan []byte]struct{}
	logger      *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan []byte]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for a session's messages.
// The returned func unsubscribes and closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan []byte, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan []byte, subscriberBuffer)
	if _, ok := h.subscribers[sessionID]; !ok {
		h.subscribers[sessionID] = make(map[chan []byte]struct{})
	}
	h.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.subscribers, sessionID)
			}
		}
	}
}

// Subscribers returns the number of live subscribers of a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[sessionID])
}

// Publish sends msg to every subscriber of a session. Slow subscribers
// whose buffer is full miss the message.
func (h *Hub) Publish(sessionID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("Event encoding failed", "session_id", sessionID, "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers[sessionID] {
		select {
		case ch <- data:
		default:
			h.logger.Warn("Subscriber buffer full, dropping message", "session_id", sessionID, "type", msg.Type)
		}
	}
}

// Close disconnects every subscriber of a session.
func (h *Hub) Close(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[sessionID] {
		close(ch)
	}
	delete(h.subscribers, sessionID)
}

// Hooks returns playback hooks publishing a session's events.
// Progress snapshots are sent as diffs against the previous one.
func (h *Hub) Hooks(sessionID string) domain.PlaybackHooks {
	var (
		mu   sync.Mutex
		last *domain.Progress
	)
	send := func(t domain.EventType, e any) {
		h.Publish(sessionID, Message{Type: t, Event: e})
	}
	return domain.PlaybackHooks{
		OnSceneChanged:     func(_ context.Context, e *domain.SceneEvent) { send(e.Type, e) },
		OnContentRevealed:  func(_ context.Context, e *domain.ContentEvent) { send(e.Type, e) },
		OnRevealProgress:   func(_ context.Context, e *domain.ContentEvent) { send(e.Type, e) },
		OnChoicesAvailable: func(_ context.Context, e *domain.ChoiceEvent) { send(e.Type, e) },
		OnEnded:            func(_ context.Context, e *domain.EndedEvent) { send(e.Type, e) },
		OnStalled:          func(_ context.Context, e *domain.StalledEvent) { send(e.Type, e) },
		OnAccessDenied:     func(_ context.Context, e *domain.UnitEvent) { send(e.Type, e) },
		OnLoading:          func(_ context.Context, e *domain.UnitEvent) { send(e.Type, e) },
		OnUnitChanged:      func(_ context.Context, e *domain.UnitEvent) { send(e.Type, e) },
		OnProgress: func(_ context.Context, e *domain.ProgressEvent) {
			mu.Lock()
			diff := domain.Diff(last, e.Progress)
			last = e.Progress
			mu.Unlock()
			if diff == nil || diff.IsEmpty() {
				return
			}
			h.Publish(sessionID, Message{Type: e.Type, Diff: diff})
		},
	}
}

// serveEvents streams a session's messages over a websocket. The first
// frame is a snapshot of the current view.
func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	id := sessionParam(r)
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()

	sub, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	snapshot, err := json.Marshal(Message{Type: "snapshot", Event: sess.View()})
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case data, ok := <-sub:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("Websocket write failed", "session_id", id, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
