package http

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/aretw0/formtree/pkg/ports"
)

// StreamManager fans session updates out to server-sent event subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // session id -> channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a buffered channel for sessionID. The returned func
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[sessionID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(sm.subscribers, sessionID)
				}
			}
			close(ch)
		})
	}
}

// Broadcast delivers msg to every subscriber of sessionID, dropping it for
// subscribers whose buffer is full.
func (sm *StreamManager) Broadcast(sessionID string, msg string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	delivered := 0
	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

// SubscribeEvents handles GET /events. With a session_id query parameter it streams
// session views; without one it streams questionnaire reload notifications.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	id, err := eventsSessionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if id == "" {
		s.streamReloads(w, r, flusher)
		return
	}

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	startStream(w, flusher)
	s.logger.Info("event stream opened", "session_id", id)
	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("event stream closed", "session_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: session\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) streamReloads(w http.ResponseWriter, r *http.Request, flusher http.Flusher) {
	watchable, ok := s.Loader.(ports.Watchable)
	if !ok {
		s.writeError(w, r, badRequest("session_id is required: the questionnaire source cannot be watched"))
		return
	}
	events, err := watchable.Watch(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	startStream(w, flusher)
	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprint(w, "event: reload\ndata: questionnaires changed\n\n")
			flusher.Flush()
		}
	}
}

func startStream(w http.ResponseWriter, flusher http.Flusher) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
}
