package integrity

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentra/internal/geofence"
	"sentra/internal/notify"
	"sentra/internal/platform/config"
	"sentra/internal/schedule"
	id "sentra/pkg/domain"
	domainerrors "sentra/pkg/domain-errors"
)

var testFraudCfg = config.FraudConfig{
	SpeedCeilingKmh:     500,
	AccuracyFloorMeters: 100,
	OutOfZoneEscalation: 3,
	OffenseWindow:       time.Hour,
	GraceWindow:         15 * time.Minute,
}

type fakePublisher struct {
	rooms []string
}

func (f *fakePublisher) Publish(string, any)               {}
func (f *fakePublisher) PublishToUser(string, string, any) {}
func (f *fakePublisher) PublishToRoom(room string, _ string, _ any) {
	f.rooms = append(f.rooms, room)
}

type fakeNotifier struct {
	sent []notify.Notification
}

func (f *fakeNotifier) Send(_ context.Context, n notify.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

type monitorFixture struct {
	monitor  *Monitor
	samples  *InMemorySampleStore
	signals  *InMemorySignalStore
	schedule *schedule.InMemoryStore
	notifier *fakeNotifier
	pub      *fakePublisher
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		samples:  NewInMemorySampleStore(),
		signals:  NewInMemorySignalStore(),
		schedule: schedule.NewInMemoryStore(),
		notifier: &fakeNotifier{},
		pub:      &fakePublisher{},
	}
	f.monitor = NewMonitor(
		f.samples, f.signals,
		NewInMemoryOffenseCounter(testFraudCfg.OffenseWindow),
		f.schedule, testFraudCfg,
		slog.New(slog.DiscardHandler),
		WithBroadcaster(f.pub),
		WithNotifier(f.notifier),
	)
	return f
}

func sampleAt(agentID id.AgentID, lat, lon float64, at time.Time) *LocationSample {
	return &LocationSample{
		ID:             id.NewSampleID(),
		AgentID:        agentID,
		Latitude:       lat,
		Longitude:      lon,
		AccuracyMeters: 10,
		RecordedAt:     at,
	}
}

func TestProcessFirstSampleRaisesNothing(t *testing.T) {
	f := newMonitorFixture(t)
	agent := id.NewAgentID()

	out, err := f.monitor.Process(context.Background(), sampleAt(agent, 36.8, 10.18, time.Now()))
	require.NoError(t, err)

	assert.Empty(t, out.Signals)
	assert.False(t, out.Rejected)
	assert.Equal(t, geofence.NotConfigured, out.Verdict.Containment)

	history, err := f.monitor.History(context.Background(), agent, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestProcessTeleportationRaisesSpoofingSignal(t *testing.T) {
	f := newMonitorFixture(t)
	agent := id.NewAgentID()
	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// 0.45 degrees of latitude is roughly 50 km. Covering it in 60 seconds
	// implies about 3,000 km/h.
	_, err := f.monitor.Process(context.Background(), sampleAt(agent, 36.8, 10.18, t0))
	require.NoError(t, err)
	out, err := f.monitor.Process(context.Background(), sampleAt(agent, 37.25, 10.18, t0.Add(time.Minute)))
	require.NoError(t, err)

	require.Len(t, out.Signals, 1)
	signal := out.Signals[0]
	assert.Equal(t, KindGPSSpoofing, signal.Kind)
	assert.Equal(t, SeverityHigh, signal.Severity)
	assert.Equal(t, "teleportation", signal.Details["classification"])
	speed, ok := signal.Details["implied_speed_kmh"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 3000, speed, 50)
	assert.False(t, out.Rejected)

	// Implausible movement is advisory: the sample still lands in history.
	history, err := f.monitor.History(context.Background(), agent, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	// Supervisors see the signal in realtime.
	assert.Contains(t, f.pub.rooms, "role:supervisor")
}

func TestProcessPlausibleMovementRaisesNothing(t *testing.T) {
	f := newMonitorFixture(t)
	agent := id.NewAgentID()
	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// 0.0045 degrees of latitude is roughly 500 m, so 30 km/h over a minute.
	_, err := f.monitor.Process(context.Background(), sampleAt(agent, 36.8, 10.18, t0))
	require.NoError(t, err)
	out, err := f.monitor.Process(context.Background(), sampleAt(agent, 36.8045, 10.18, t0.Add(time.Minute)))
	require.NoError(t, err)

	assert.Empty(t, out.Signals)
}

func TestProcessMockLocationAlwaysRejects(t *testing.T) {
	f := newMonitorFixture(t)
	agent := id.NewAgentID()

	sample := sampleAt(agent, 36.8, 10.18, time.Now())
	sample.IsMockLocation = true

	out, err := f.monitor.Process(context.Background(), sample)
	require.NoError(t, err)

	assert.True(t, out.Rejected)
	require.Len(t, out.Signals, 1)
	assert.Equal(t, KindMockLocation, out.Signals[0].Kind)
	assert.Equal(t, SeverityCritical, out.Signals[0].Severity)

	// The falsified report never enters the movement history.
	history, err := f.monitor.History(context.Background(), agent, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestProcessPoorAccuracySkipsSpeedCheck(t *testing.T) {
	f := newMonitorFixture(t)
	agent := id.NewAgentID()
	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	first := sampleAt(agent, 36.8, 10.18, t0)
	first.AccuracyMeters = 250
	_, err := f.monitor.Process(context.Background(), first)
	require.NoError(t, err)

	// Teleportation distance, but the predecessor was radio noise.
	out, err := f.monitor.Process(context.Background(), sampleAt(agent, 37.25, 10.18, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Empty(t, out.Signals)
}

func TestProcessOutOfOrderDeliveryComparesByRecordedAt(t *testing.T) {
	f := newMonitorFixture(t)
	agent := id.NewAgentID()
	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// The later sample arrives first. When the earlier one shows up it must
	// be compared against nothing, not against its own future.
	_, err := f.monitor.Process(context.Background(), sampleAt(agent, 36.8, 10.18, t0.Add(time.Minute)))
	require.NoError(t, err)
	out, err := f.monitor.Process(context.Background(), sampleAt(agent, 37.25, 10.18, t0))
	require.NoError(t, err)

	assert.Empty(t, out.Signals)
}

func TestProcessOutOfZoneEscalatesAfterRepeatedOffenses(t *testing.T) {
	f := newMonitorFixture(t)
	agent := id.NewAgentID()
	supervisor := id.NewActorID()
	eventID := id.NewEventID()
	f.schedule.PutEvent(schedule.Event{
		ID:           eventID,
		Name:         "Port gate 4",
		Center:       &geofence.Point{Lat: 36.8, Lon: 10.18},
		RadiusMeters: 100,
		Supervisors:  []id.ActorID{supervisor},
	})

	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var out *Assessment
	for i := 0; i < 3; i++ {
		// About 1 km north of the site, well outside the 100 m radius, and
		// slow enough between reports to stay under the speed ceiling.
		sample := sampleAt(agent, 36.809, 10.18, t0.Add(time.Duration(i)*10*time.Minute))
		sample.EventID = &eventID

		var err error
		out, err = f.monitor.Process(context.Background(), sample)
		require.NoError(t, err)
		require.Len(t, out.Signals, 1)
		assert.Equal(t, KindOutOfZone, out.Signals[0].Kind)
	}

	// Third offense in the window escalates.
	assert.Equal(t, SeverityHigh, out.Signals[0].Severity)
	assert.Equal(t, "N", out.Signals[0].Details["direction"])
	require.Len(t, out.Alerts, 1)
	assert.Contains(t, out.Alerts[0], "3 offenses")
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, []string{supervisor.String()}, f.notifier.sent[0].Recipients)

	assert.Equal(t, geofence.Outside, out.Verdict.Containment)
	assert.InDelta(t, 1000, out.Verdict.DistanceMeters, 10)
}

func TestProcessWithinGeofenceSetsVerdict(t *testing.T) {
	f := newMonitorFixture(t)
	agent := id.NewAgentID()
	eventID := id.NewEventID()
	f.schedule.PutEvent(schedule.Event{
		ID:           eventID,
		Center:       &geofence.Point{Lat: 36.8, Lon: 10.18},
		RadiusMeters: 150,
	})

	sample := sampleAt(agent, 36.8003, 10.18, time.Now())
	sample.EventID = &eventID

	out, err := f.monitor.Process(context.Background(), sample)
	require.NoError(t, err)

	assert.Equal(t, geofence.Within, out.Verdict.Containment)
	require.NotNil(t, sample.IsWithinGeofence)
	assert.True(t, *sample.IsWithinGeofence)
	assert.Empty(t, out.Signals)
}

func TestProcessUnknownEventIDSkipsGeofence(t *testing.T) {
	f := newMonitorFixture(t)
	agent := id.NewAgentID()
	unknown := id.NewEventID()

	sample := sampleAt(agent, 36.8, 10.18, time.Now())
	sample.EventID = &unknown

	out, err := f.monitor.Process(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, geofence.NotConfigured, out.Verdict.Containment)
	assert.Nil(t, sample.IsWithinGeofence)
}

func TestResolveSignal(t *testing.T) {
	f := newMonitorFixture(t)
	agent := id.NewAgentID()

	sample := sampleAt(agent, 36.8, 10.18, time.Now())
	sample.IsMockLocation = true
	out, err := f.monitor.Process(context.Background(), sample)
	require.NoError(t, err)
	signalID := out.Signals[0].ID

	resolved, err := f.monitor.ResolveSignal(context.Background(), signalID, "sup-1", "device replaced, confirmed with agent")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved())
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "sup-1", *resolved.ResolvedBy)

	// A closed signal stays closed.
	_, err = f.monitor.ResolveSignal(context.Background(), signalID, "sup-2", "again")
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeConflict))

	unresolved, err := f.monitor.ListSignals(context.Background(), SignalFilter{AgentID: &agent, Unresolved: true})
	require.NoError(t, err)
	assert.Empty(t, unresolved)
}
