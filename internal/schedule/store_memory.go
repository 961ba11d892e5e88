package schedule

import (
	"context"
	"sync"

	id "sentra/pkg/domain"
	"sentra/pkg/platform/sentinel"
)

type assignmentKey struct {
	agent id.AgentID
	event id.EventID
}

// InMemoryStore is the development and test implementation of Store.
type InMemoryStore struct {
	mu          sync.RWMutex
	events      map[id.EventID]Event
	assignments map[assignmentKey]Assignment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events:      make(map[id.EventID]Event),
		assignments: make(map[assignmentKey]Assignment),
	}
}

// PutEvent seeds an event. Test and bootstrap helper; the planning system owns
// event data in production.
func (s *InMemoryStore) PutEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = event
}

// PutAssignment seeds an assignment.
func (s *InMemoryStore) PutAssignment(a Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[assignmentKey{agent: a.AgentID, event: a.EventID}] = a
}

func (s *InMemoryStore) EventByID(_ context.Context, eventID id.EventID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &event, nil
}

func (s *InMemoryStore) AssignmentFor(_ context.Context, agentID id.AgentID, eventID id.EventID) (*Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[assignmentKey{agent: agentID, event: eventID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}
