//go:build integration

package attendance_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"sentra/internal/attendance"
	id "sentra/pkg/domain"
	"sentra/pkg/platform/sentinel"
	"sentra/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *attendance.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = attendance.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func newTestRecord(agentID id.AgentID, eventID id.EventID, day time.Time) *attendance.Record {
	now := time.Now().UTC()
	checkIn := day.Add(9 * time.Hour)
	lat, lon := 36.8065, 10.1815
	within := true
	return &attendance.Record{
		ID:                   id.NewAttendanceID(),
		AgentID:              agentID,
		EventID:              eventID,
		Date:                 attendance.DateOf(day),
		CheckInAt:            &checkIn,
		CheckInLat:           &lat,
		CheckInLon:           &lon,
		Status:               attendance.StatusPresent,
		CheckInMethod:        attendance.MethodFacial,
		IsWithinGeofence:     &within,
		DistanceFromLocation: 42,
		Source:               attendance.SourceSelf,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func (s *PostgresStoreSuite) TestInsertAndFindByKey() {
	ctx := context.Background()
	agentID, eventID := id.NewAgentID(), id.NewEventID()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	rec := newTestRecord(agentID, eventID, day)
	s.Require().NoError(s.store.Insert(ctx, rec))

	got, err := s.store.FindByKey(ctx, agentID, eventID, day)
	s.Require().NoError(err)
	s.Equal(rec.ID, got.ID)
	s.Equal(attendance.StatusPresent, got.Status)
	s.Require().NotNil(got.CheckInAt)
	s.WithinDuration(*rec.CheckInAt, *got.CheckInAt, time.Second)
	s.Require().NotNil(got.IsWithinGeofence)
	s.True(*got.IsWithinGeofence)
	s.Equal(42, got.DistanceFromLocation)
	s.Nil(got.CheckOutAt)
	s.Nil(got.TotalHours)
}

func (s *PostgresStoreSuite) TestFindByKeyNotFound() {
	_, err := s.store.FindByKey(context.Background(),
		id.NewAgentID(), id.NewEventID(), time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateInsertConflicts() {
	ctx := context.Background()
	agentID, eventID := id.NewAgentID(), id.NewEventID()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Insert(ctx, newTestRecord(agentID, eventID, day)))

	err := s.store.Insert(ctx, newTestRecord(agentID, eventID, day))
	s.ErrorIs(err, sentinel.ErrConflict)

	// A different day for the same pair is a distinct key.
	s.NoError(s.store.Insert(ctx, newTestRecord(agentID, eventID, day.AddDate(0, 0, 1))))
}

// TestConcurrentInsertSingleWinner verifies that the partial unique index
// resolves racing inserts to exactly one stored record.
func (s *PostgresStoreSuite) TestConcurrentInsertSingleWinner() {
	ctx := context.Background()
	agentID, eventID := id.NewAgentID(), id.NewEventID()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	const goroutines = 20

	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Insert(ctx, newTestRecord(agentID, eventID, day))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load(), "exactly one insert should win")
	s.Equal(int32(goroutines-1), conflicts.Load())

	records, err := s.store.ListByAgentOnDate(ctx, agentID, day)
	s.Require().NoError(err)
	s.Len(records, 1)
}

func (s *PostgresStoreSuite) TestUpdateCheckOut() {
	ctx := context.Background()
	agentID, eventID := id.NewAgentID(), id.NewEventID()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	rec := newTestRecord(agentID, eventID, day)
	s.Require().NoError(s.store.Insert(ctx, rec))

	checkOut := day.Add(17*time.Hour + 30*time.Minute)
	hours := attendance.Hours(*rec.CheckInAt, checkOut)
	rec.CheckOutAt = &checkOut
	rec.TotalHours = &hours
	rec.Notes = "left after evening sweep"
	rec.UpdatedAt = time.Now().UTC()
	s.Require().NoError(s.store.Update(ctx, rec))

	got, err := s.store.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.TotalHours)
	s.InDelta(8.5, *got.TotalHours, 0.001)
	s.Equal("left after evening sweep", got.Notes)
}

func (s *PostgresStoreSuite) TestUpdateMissingRecord() {
	rec := newTestRecord(id.NewAgentID(), id.NewEventID(),
		time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
	err := s.store.Update(context.Background(), rec)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteHidesRecordAndFreesKey() {
	ctx := context.Background()
	agentID, eventID := id.NewAgentID(), id.NewEventID()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	rec := newTestRecord(agentID, eventID, day)
	s.Require().NoError(s.store.Insert(ctx, rec))
	s.Require().NoError(s.store.Delete(ctx, rec.ID, time.Now().UTC()))

	_, err := s.store.FindByID(ctx, rec.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByKey(ctx, agentID, eventID, day)
	s.ErrorIs(err, sentinel.ErrNotFound)

	records, err := s.store.ListByEvent(ctx, eventID, day)
	s.Require().NoError(err)
	s.Empty(records)

	// The tombstone releases the uniqueness slot for a fresh record.
	s.NoError(s.store.Insert(ctx, newTestRecord(agentID, eventID, day)))

	err = s.store.Delete(ctx, rec.ID, time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByEventOrdering() {
	ctx := context.Background()
	eventID := id.NewEventID()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	first := newTestRecord(id.NewAgentID(), eventID, day)
	first.CreatedAt = day.Add(8 * time.Hour)
	first.UpdatedAt = first.CreatedAt
	second := newTestRecord(id.NewAgentID(), eventID, day)
	second.CreatedAt = day.Add(10 * time.Hour)
	second.UpdatedAt = second.CreatedAt
	s.Require().NoError(s.store.Insert(ctx, first))
	s.Require().NoError(s.store.Insert(ctx, second))

	records, err := s.store.ListByEvent(ctx, eventID, day)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(second.ID, records[0].ID, "newest record first")
	s.Equal(first.ID, records[1].ID)
}
