package audit

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "sentra/pkg/domain"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, slog.New(slog.DiscardHandler))
	defer pub.Close()

	pub.Emit(context.Background(), Event{
		Timestamp: time.Now(),
		Action:    ActionAbsentMarked,
		AgentID:   id.NewAgentID(),
	})

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ActionAbsentMarked, events[0].Action)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, slog.New(slog.DiscardHandler), WithAsyncBuffer(100))

	agent := id.NewAgentID()
	for range 10 {
		pub.Emit(context.Background(), Event{Action: ActionManualCorrection, AgentID: agent})
	}

	pub.Close()

	assert.Len(t, store.Events(), 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	pub := NewPublisher(store, slog.New(slog.DiscardHandler), WithAsyncBuffer(1))

	// First emit is picked up by the worker and blocks; the next fills the
	// buffer; the third must drop rather than block the caller.
	pub.Emit(context.Background(), Event{Action: ActionFraudSignal})
	pub.Emit(context.Background(), Event{Action: ActionFraudSignal})

	done := make(chan struct{})
	go func() {
		pub.Emit(context.Background(), Event{Action: ActionFraudSignal})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}

	close(store.release)
	pub.Close()
}

type blockingStore struct {
	release chan struct{}
}

func (s *blockingStore) Append(context.Context, Event) error {
	<-s.release
	return nil
}
