package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Scope names the delivery target class of a publish.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeUser   Scope = "user"
	ScopeRoom   Scope = "room"
)

// frame is the cross-instance wire format. Origin lets an instance ignore its
// own publishes when they come back around.
type frame struct {
	Origin string          `json:"origin"`
	Scope  Scope           `json:"scope"`
	Key    string          `json:"key,omitempty"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// Bridge relays publishes between server instances over Redis pub/sub so a
// dashboard connected to one instance sees check-ins committed on another.
// Delivery inherits Redis pub/sub semantics: best-effort, no replay.
type Bridge struct {
	client   *redis.Client
	channel  string
	instance string
	logger   *slog.Logger
}

// NewBridge wires a hub to a Redis channel. Returns nil when client is nil so
// single-instance deployments skip the bridge entirely.
func NewBridge(client *redis.Client, channel string, logger *slog.Logger) *Bridge {
	if client == nil {
		return nil
	}
	return &Bridge{
		client:   client,
		channel:  channel,
		instance: uuid.NewString(),
		logger:   logger,
	}
}

// Attach connects the bridge to a hub. Must be called before Run.
func (b *Bridge) Attach(h *Hub) {
	if b != nil {
		h.bridge = b
	}
}

// Run consumes remote frames until ctx is canceled. Cancellation is the
// normal shutdown path and returns nil, so a server run group does not
// mistake it for a failure.
func (b *Bridge) Run(ctx context.Context, h *Hub) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var f frame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				b.logger.Warn("realtime bridge frame decode failed", "error", err)
				continue
			}
			if f.Origin == b.instance {
				continue
			}
			h.publishLocal(f.Scope, f.Key, f.Event, f.Data)
		}
	}
}

func (b *Bridge) forward(scope Scope, key, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		b.logger.Warn("realtime bridge payload marshal failed", "event", event, "error", err)
		return
	}
	f := frame{Origin: b.instance, Scope: scope, Key: key, Event: event, Data: raw}
	payload, err := json.Marshal(f)
	if err != nil {
		b.logger.Warn("realtime bridge frame marshal failed", "event", event, "error", err)
		return
	}
	if err := b.client.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		b.logger.Warn("realtime bridge publish failed", "event", event, "error", err)
	}
}
