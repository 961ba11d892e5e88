package attendance

import (
	"context"
	"sync"
	"time"

	id "sentra/pkg/domain"
	"sentra/pkg/platform/sentinel"
)

type recordKey struct {
	agent id.AgentID
	event id.EventID
	date  string
}

func keyOf(agentID id.AgentID, eventID id.EventID, date time.Time) recordKey {
	return recordKey{agent: agentID, event: eventID, date: DateOf(date).Format("2006-01-02")}
}

// InMemoryStore is the development and test implementation of Store. The
// byKey index carries the same uniqueness guarantee the relational store gets
// from its unique index.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[id.AttendanceID]*Record
	byKey map[recordKey]id.AttendanceID
	order []id.AttendanceID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[id.AttendanceID]*Record),
		byKey: make(map[recordKey]id.AttendanceID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := keyOf(rec.AgentID, rec.EventID, rec.Date)
	if winnerID, ok := s.byKey[key]; ok {
		if winner := s.byID[winnerID]; winner != nil && winner.DeletedAt == nil {
			return sentinel.ErrConflict
		}
	}
	cp := *rec
	s.byID[rec.ID] = &cp
	s.byKey[key] = rec.ID
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[rec.ID]
	if !ok || existing.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	cp := *rec
	s.byID[rec.ID] = &cp
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, attendanceID id.AttendanceID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[attendanceID]
	if !ok || rec.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	rec.DeletedAt = &at
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, attendanceID id.AttendanceID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[attendanceID]
	if !ok || rec.DeletedAt != nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryStore) FindByKey(_ context.Context, agentID id.AgentID, eventID id.EventID, date time.Time) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recID, ok := s.byKey[keyOf(agentID, eventID, date)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	rec := s.byID[recID]
	if rec == nil || rec.DeletedAt != nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryStore) ListByEvent(_ context.Context, eventID id.EventID, date time.Time) ([]*Record, error) {
	return s.list(func(rec *Record) bool {
		return rec.EventID == eventID && rec.Date.Equal(DateOf(date))
	})
}

func (s *InMemoryStore) ListByAgentOnDate(_ context.Context, agentID id.AgentID, date time.Time) ([]*Record, error) {
	return s.list(func(rec *Record) bool {
		return rec.AgentID == agentID && rec.Date.Equal(DateOf(date))
	})
}

func (s *InMemoryStore) list(match func(*Record) bool) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.byID[s.order[i]]
		if rec == nil || rec.DeletedAt != nil || !match(rec) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}
