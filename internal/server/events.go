package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Event types.
const (
	EventPayload = "payload"
	EventParams  = "params"
	EventDeleted = "deleted"
)

// Event is emitted whenever a session's dashboard changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Months    int       `json:"months"`
	Dropped   int       `json:"dropped"`
}

type subscriber struct {
	sessionID string
	ch        chan Event
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.nextEventID++
	ev.ID = s.nextEventID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, sub := range s.subs {
		if sub.sessionID != ev.SessionID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

// recentEvents returns buffered events for one session, or all when id is empty.
func (s *Service) recentEvents(id string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if id == "" || ev.SessionID == id {
			events = append(events, ev)
		}
	}
	return events
}

func (s *Service) addSubscriber(sessionID string, ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = subscriber{sessionID: sessionID, ch: ch}
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func (s *Service) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, id)
	}
}

func writeSSE(w io.Writer, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}
