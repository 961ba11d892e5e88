//go:build integration

package integrity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sentra/internal/integrity"
	id "sentra/pkg/domain"
	"sentra/pkg/testutil/containers"
)

type RedisOffenseCounterSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisOffenseCounterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisOffenseCounterSuite))
}

func (s *RedisOffenseCounterSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisOffenseCounterSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisOffenseCounterSuite) TestIncrCountsPerAgentEventPair() {
	ctx := context.Background()
	counter := integrity.NewRedisOffenseCounter(s.redis.Client, time.Hour)
	agentID, eventID := id.NewAgentID(), id.NewEventID()

	for want := 1; want <= 3; want++ {
		n, err := counter.Incr(ctx, agentID, eventID)
		s.Require().NoError(err)
		s.Equal(want, n)
	}

	// A different pair starts from scratch.
	n, err := counter.Incr(ctx, id.NewAgentID(), eventID)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *RedisOffenseCounterSuite) TestWindowExpiryResetsCount() {
	ctx := context.Background()
	counter := integrity.NewRedisOffenseCounter(s.redis.Client, 500*time.Millisecond)
	agentID, eventID := id.NewAgentID(), id.NewEventID()

	n, err := counter.Incr(ctx, agentID, eventID)
	s.Require().NoError(err)
	s.Equal(1, n)
	n, err = counter.Incr(ctx, agentID, eventID)
	s.Require().NoError(err)
	s.Equal(2, n)

	time.Sleep(700 * time.Millisecond)

	n, err = counter.Incr(ctx, agentID, eventID)
	s.Require().NoError(err)
	s.Equal(1, n, "count resets after the window elapses")
}

// TestSharedAcrossInstances verifies two counters backed by the same Redis
// observe one shared count, the property that matters with multiple servers.
func (s *RedisOffenseCounterSuite) TestSharedAcrossInstances() {
	ctx := context.Background()
	agentID, eventID := id.NewAgentID(), id.NewEventID()
	a := integrity.NewRedisOffenseCounter(s.redis.Client, time.Hour)
	b := integrity.NewRedisOffenseCounter(s.redis.Client, time.Hour)

	n, err := a.Incr(ctx, agentID, eventID)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = b.Incr(ctx, agentID, eventID)
	s.Require().NoError(err)
	s.Equal(2, n)
}
