package integrity

import (
	"context"
	"sort"
	"sync"
	"time"

	id "sentra/pkg/domain"
	"sentra/pkg/platform/sentinel"
)

// InMemorySampleStore keeps per-agent location history sorted by RecordedAt.
type InMemorySampleStore struct {
	mu      sync.RWMutex
	samples map[id.AgentID][]*LocationSample
}

func NewInMemorySampleStore() *InMemorySampleStore {
	return &InMemorySampleStore{samples: make(map[id.AgentID][]*LocationSample)}
}

func (s *InMemorySampleStore) Insert(_ context.Context, sample *LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sample
	list := append(s.samples[sample.AgentID], &cp)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].RecordedAt.Before(list[j].RecordedAt)
	})
	s.samples[sample.AgentID] = list
	return nil
}

func (s *InMemorySampleStore) LastBefore(_ context.Context, agentID id.AgentID, t time.Time) (*LocationSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.samples[agentID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].RecordedAt.Before(t) {
			cp := *list[i]
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemorySampleStore) ListByAgent(_ context.Context, agentID id.AgentID, limit int) ([]*LocationSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.samples[agentID]
	out := make([]*LocationSample, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

// InMemorySignalStore keeps fraud signals in memory.
type InMemorySignalStore struct {
	mu      sync.RWMutex
	signals map[id.SignalID]*FraudSignal
	order   []id.SignalID
}

func NewInMemorySignalStore() *InMemorySignalStore {
	return &InMemorySignalStore{signals: make(map[id.SignalID]*FraudSignal)}
}

func (s *InMemorySignalStore) Insert(_ context.Context, signal *FraudSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *signal
	s.signals[signal.ID] = &cp
	s.order = append(s.order, signal.ID)
	return nil
}

func (s *InMemorySignalStore) FindByID(_ context.Context, signalID id.SignalID) (*FraudSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	signal, ok := s.signals[signalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *signal
	return &cp, nil
}

func (s *InMemorySignalStore) List(_ context.Context, filter SignalFilter) ([]*FraudSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*FraudSignal
	for i := len(s.order) - 1; i >= 0; i-- {
		signal := s.signals[s.order[i]]
		if filter.AgentID != nil && signal.AgentID != *filter.AgentID {
			continue
		}
		if filter.EventID != nil && (signal.EventID == nil || *signal.EventID != *filter.EventID) {
			continue
		}
		if filter.Unresolved && signal.Resolved() {
			continue
		}
		cp := *signal
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemorySignalStore) Resolve(_ context.Context, signalID id.SignalID, resolvedBy, resolution string, at time.Time) (*FraudSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	signal, ok := s.signals[signalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if signal.Resolved() {
		return nil, sentinel.ErrInvalidState
	}
	signal.ResolvedBy = &resolvedBy
	signal.ResolvedAt = &at
	signal.Resolution = &resolution
	cp := *signal
	return &cp, nil
}

// InMemoryOffenseCounter accumulates out-of-zone offenses in a rolling
// window. Single-instance fallback when Redis is not configured.
type InMemoryOffenseCounter struct {
	mu     sync.Mutex
	window time.Duration
	hits   map[string][]time.Time
}

func NewInMemoryOffenseCounter(window time.Duration) *InMemoryOffenseCounter {
	return &InMemoryOffenseCounter{window: window, hits: make(map[string][]time.Time)}
}

func (c *InMemoryOffenseCounter) Incr(_ context.Context, agentID id.AgentID, eventID id.EventID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := agentID.String() + ":" + eventID.String()
	now := time.Now()
	cutoff := now.Add(-c.window)
	kept := c.hits[key][:0]
	for _, t := range c.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	c.hits[key] = kept
	return len(kept), nil
}
