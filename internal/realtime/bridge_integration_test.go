//go:build integration

package realtime_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sentra/internal/realtime"
	"sentra/pkg/testutil/containers"
)

type BridgeSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestBridgeSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(BridgeSuite))
}

func (s *BridgeSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

// TestRunReturnsNilOnCancel verifies that shutting the context down reads as
// a clean exit, not an error the run group would report.
func (s *BridgeSuite) TestRunReturnsNilOnCancel() {
	logger := slog.New(slog.DiscardHandler)
	hub := realtime.NewHub(logger)
	bridge := realtime.NewBridge(s.redis.Client, "sentra:realtime", logger)
	s.Require().NotNil(bridge)
	bridge.Attach(hub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx, hub) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("bridge did not stop after cancellation")
	}
}

// TestForwardsBetweenHubs verifies a publish on one instance reaches a
// subscriber attached to another instance's hub.
func (s *BridgeSuite) TestForwardsBetweenHubs() {
	logger := slog.New(slog.DiscardHandler)
	const channel = "sentra:realtime:fanout"

	hubA := realtime.NewHub(logger)
	bridgeA := realtime.NewBridge(s.redis.Client, channel, logger)
	bridgeA.Attach(hubA)

	hubB := realtime.NewHub(logger)
	bridgeB := realtime.NewBridge(s.redis.Client, channel, logger)
	bridgeB.Attach(hubB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridgeB.Run(ctx, hubB) }()
	time.Sleep(100 * time.Millisecond)

	sub := hubB.Subscribe("sup-1", nil, 8)
	defer hubB.Unsubscribe(sub)

	hubA.Publish(realtime.EventCheckedIn, map[string]string{"agent": "x"})

	select {
	case env := <-sub.Send:
		s.Equal(realtime.EventCheckedIn, env.Event)
	case <-time.After(5 * time.Second):
		s.Fail("publish did not cross the bridge")
	}
}
