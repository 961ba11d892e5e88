package realtime

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.DiscardHandler))
}

func drain(sub *Subscription) []Envelope {
	var out []Envelope
	for {
		select {
		case env := <-sub.Send:
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestHubPublish(t *testing.T) {
	t.Run("global reaches every connection", func(t *testing.T) {
		hub := newTestHub()
		a := hub.Subscribe("user-a", nil, 8)
		b := hub.Subscribe("user-b", nil, 8)

		hub.Publish(EventCheckedIn, map[string]string{"agent": "x"})

		assert.Len(t, drain(a), 1)
		assert.Len(t, drain(b), 1)
	})

	t.Run("room scoped delivery", func(t *testing.T) {
		hub := newTestHub()
		joined := hub.Subscribe("user-a", []string{EventRoom("42")}, 8)
		other := hub.Subscribe("user-b", []string{EventRoom("99")}, 8)

		hub.PublishToRoom(EventRoom("42"), EventCheckedIn, nil)

		got := drain(joined)
		require.Len(t, got, 1)
		assert.Equal(t, EventCheckedIn, got[0].Event)
		assert.Empty(t, drain(other))
	})

	t.Run("user scoped delivery hits all of the user's connections", func(t *testing.T) {
		hub := newTestHub()
		first := hub.Subscribe("user-a", nil, 8)
		second := hub.Subscribe("user-a", nil, 8)
		other := hub.Subscribe("user-b", nil, 8)

		hub.PublishToUser("user-a", EventFraudSignal, nil)

		assert.Len(t, drain(first), 1)
		assert.Len(t, drain(second), 1)
		assert.Empty(t, drain(other))
	})

	t.Run("disconnected connection receives nothing further", func(t *testing.T) {
		hub := newTestHub()
		sub := hub.Subscribe("user-a", []string{EventRoom("42")}, 8)

		hub.Unsubscribe(sub)
		hub.Publish(EventCheckedIn, nil)
		hub.PublishToRoom(EventRoom("42"), EventCheckedIn, nil)
		hub.PublishToUser("user-a", EventCheckedIn, nil)

		assert.Empty(t, drain(sub))
		select {
		case <-sub.Done():
		default:
			t.Fatal("done channel should be closed after unsubscribe")
		}
	})

	t.Run("unsubscribe is idempotent", func(t *testing.T) {
		hub := newTestHub()
		sub := hub.Subscribe("user-a", nil, 8)
		hub.Unsubscribe(sub)
		hub.Unsubscribe(sub)
	})
}

func TestHubRooms(t *testing.T) {
	t.Run("dynamic join and leave", func(t *testing.T) {
		hub := newTestHub()
		sub := hub.Subscribe("user-a", nil, 8)

		hub.PublishToRoom(EventRoom("42"), EventCheckedIn, nil)
		assert.Empty(t, drain(sub))

		hub.JoinRoom(sub, EventRoom("42"))
		hub.PublishToRoom(EventRoom("42"), EventCheckedIn, nil)
		assert.Len(t, drain(sub), 1)

		hub.LeaveRoom(sub, EventRoom("42"))
		hub.PublishToRoom(EventRoom("42"), EventCheckedIn, nil)
		assert.Empty(t, drain(sub))
	})

	t.Run("empty room key ignored on join", func(t *testing.T) {
		hub := newTestHub()
		sub := hub.Subscribe("user-a", nil, 8)
		hub.JoinRoom(sub, "")
		hub.Publish(EventCheckedIn, nil)
		assert.Len(t, drain(sub), 1)
	})
}

func TestHubSlowConsumer(t *testing.T) {
	hub := newTestHub()
	sub := hub.Subscribe("user-a", nil, 1)

	// Second publish overflows the buffer and is dropped, not blocked on.
	hub.Publish(EventCheckedIn, nil)
	hub.Publish(EventCheckedIn, nil)

	assert.Len(t, drain(sub), 1)
}

func TestHubEmergencyFanout(t *testing.T) {
	hub := newTestHub()
	supervisor := hub.Subscribe("sup-1", nil, 8)
	roomWatcher := hub.Subscribe("user-b", []string{EventRoom("42")}, 8)
	bystander := hub.Subscribe("user-c", nil, 8)

	hub.PublishEmergency(EventRoom("42"), "sup-1", map[string]string{"agent": "x"})

	// Global + direct for the supervisor, global + room for the watcher,
	// global only for the bystander.
	assert.Len(t, drain(supervisor), 2)
	assert.Len(t, drain(roomWatcher), 2)
	assert.Len(t, drain(bystander), 1)
}

// TestHubPublishRacesDisconnect hammers publishes against a tight
// subscribe/unsubscribe loop. A publisher that snapshots a subscription just
// before its disconnect must drop the envelope, never panic.
func TestHubPublishRacesDisconnect(t *testing.T) {
	hub := newTestHub()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Publish(EventCheckedIn, nil)
					hub.PublishToRoom(EventRoom("42"), EventCheckedIn, nil)
					hub.PublishToUser("user", EventCheckedIn, nil)
				}
			}
		}()
	}

	for range 500 {
		sub := hub.Subscribe("user", []string{EventRoom("42")}, 1)
		hub.Unsubscribe(sub)
	}
	close(stop)
	wg.Wait()

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	assert.Empty(t, hub.all)
}

func TestHubConcurrentLifecycles(t *testing.T) {
	hub := newTestHub()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sub := hub.Subscribe("user", []string{EventRoom("42")}, 4)
			hub.JoinRoom(sub, EventRoom("43"))
			hub.Publish(EventCheckedIn, n)
			hub.PublishToRoom(EventRoom("42"), EventCheckedIn, n)
			hub.LeaveRoom(sub, EventRoom("42"))
			hub.Unsubscribe(sub)
		}(i)
	}
	wg.Wait()

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	assert.Empty(t, hub.all, "all connections should be removed")
	assert.Empty(t, hub.byUser, "user index should be empty")
	assert.Empty(t, hub.byRoom, "room index should be empty")
}
