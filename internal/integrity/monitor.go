// Package integrity watches the location sample stream for physically
// impossible or falsified position reports. Inferred anomalies (teleportation,
// out-of-zone) are advisory: visibility is preferred over blocking because GPS
// jitter is common and legitimate. The single hard rejection is a client that
// asserts its own location is simulated.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"sentra/internal/audit"
	"sentra/internal/geofence"
	"sentra/internal/notify"
	"sentra/internal/platform/config"
	"sentra/internal/platform/metrics"
	"sentra/internal/realtime"
	"sentra/internal/schedule"
	id "sentra/pkg/domain"
	domainerrors "sentra/pkg/domain-errors"
	"sentra/pkg/platform/sentinel"
	"sentra/pkg/requestcontext"
)

var tracer = otel.Tracer("sentra/integrity")

// Assessment is the outcome of processing one location sample.
type Assessment struct {
	Verdict geofence.Verdict
	Signals []*FraudSignal
	// Rejected is true only for client-asserted mock location; every other
	// anomaly is advisory.
	Rejected bool
	Alerts   []string
}

// Monitor is the movement integrity engine.
type Monitor struct {
	samples  SampleStore
	signals  SignalStore
	offenses OffenseCounter
	schedule schedule.Store
	cfg      config.FraudConfig

	broadcaster realtime.Publisher
	notifier    notify.Dispatcher
	auditor     *audit.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithBroadcaster attaches the realtime fan-out.
func WithBroadcaster(p realtime.Publisher) MonitorOption {
	return func(m *Monitor) { m.broadcaster = p }
}

// WithNotifier attaches the alerting collaborator.
func WithNotifier(d notify.Dispatcher) MonitorOption {
	return func(m *Monitor) { m.notifier = d }
}

// WithAuditor attaches the audit trail publisher.
func WithAuditor(p *audit.Publisher) MonitorOption {
	return func(m *Monitor) { m.auditor = p }
}

// WithMonitorMetrics attaches prometheus metrics.
func WithMonitorMetrics(mx *metrics.Metrics) MonitorOption {
	return func(m *Monitor) { m.metrics = mx }
}

// NewMonitor constructs the movement integrity monitor.
func NewMonitor(
	samples SampleStore,
	signals SignalStore,
	offenses OffenseCounter,
	sched schedule.Store,
	cfg config.FraudConfig,
	logger *slog.Logger,
	opts ...MonitorOption,
) *Monitor {
	m := &Monitor{
		samples:  samples,
		signals:  signals,
		offenses: offenses,
		schedule: sched,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Process runs the integrity checks for one position report and appends it to
// the agent's history. The returned assessment carries the geofence verdict
// and any raised signals.
func (m *Monitor) Process(ctx context.Context, sample *LocationSample) (*Assessment, error) {
	ctx, span := tracer.Start(ctx, "integrity.Process")
	defer span.End()
	span.SetAttributes(attribute.String("agent_id", sample.AgentID.String()))

	out := &Assessment{Verdict: geofence.Verdict{Containment: geofence.NotConfigured}}

	// Client-asserted simulation is the one anomaly that blocks the report
	// outright. The falsified sample is not added to the movement history.
	if sample.IsMockLocation {
		signal := m.raise(ctx, sample, KindMockLocation, SeverityCritical, map[string]any{
			"reason": "client asserted mock location",
		})
		out.Signals = append(out.Signals, signal)
		out.Rejected = true
		if m.metrics != nil {
			m.metrics.MockLocationRejects.Inc()
		}
		return out, nil
	}

	event, err := m.eventFor(ctx, sample)
	if err != nil {
		return nil, err
	}
	if event != nil {
		out.Verdict = geofence.Evaluate(
			geofence.Point{Lat: sample.Latitude, Lon: sample.Longitude},
			event.Center, event.RadiusMeters,
		)
		sample.IsWithinGeofence = out.Verdict.IsWithin()
		sample.DistanceFromEvent = out.Verdict.DistanceMeters

		if out.Verdict.Containment == geofence.Outside {
			m.handleOutOfZone(ctx, sample, event, out)
		}
	}

	if signal := m.checkSpeed(ctx, sample); signal != nil {
		out.Signals = append(out.Signals, signal)
	}

	if err := m.samples.Insert(ctx, sample); err != nil {
		return nil, fmt.Errorf("insert location sample: %w", err)
	}
	return out, nil
}

// eventFor loads the event a sample claims to belong to. An unknown event id
// is a caller error; a sample without an event id is routine tracking.
func (m *Monitor) eventFor(ctx context.Context, sample *LocationSample) (*schedule.Event, error) {
	if sample.EventID == nil {
		return nil, nil
	}
	event, err := m.schedule.EventByID(ctx, *sample.EventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	return event, nil
}

// handleOutOfZone raises the advisory signal and escalates after repeated
// offenses inside the configured window.
func (m *Monitor) handleOutOfZone(ctx context.Context, sample *LocationSample, event *schedule.Event, out *Assessment) {
	severity := SeverityMedium
	details := map[string]any{
		"distance_meters": out.Verdict.DistanceMeters,
		"radius_meters":   event.RadiusMeters,
	}
	if event.Center != nil {
		here := geofence.Point{Lat: sample.Latitude, Lon: sample.Longitude}
		details["direction"] = geofence.Cardinal(geofence.Bearing(*event.Center, here))
	}

	offenses, err := m.offenses.Incr(ctx, sample.AgentID, event.ID)
	if err != nil {
		// Counter loss degrades escalation, not detection.
		m.logger.WarnContext(ctx, "offense counter unavailable", "error", err)
	} else {
		details["offense_count"] = offenses
		if offenses >= m.cfg.OutOfZoneEscalation {
			severity = SeverityHigh
			alert := fmt.Sprintf("agent repeatedly outside geofence (%d offenses)", offenses)
			out.Alerts = append(out.Alerts, alert)
			m.alertSupervisors(ctx, event, sample, alert)
		}
	}

	signal := m.raise(ctx, sample, KindOutOfZone, severity, details)
	out.Signals = append(out.Signals, signal)
}

// checkSpeed compares the sample against the agent's immediately preceding
// sample by RecordedAt and raises a teleportation signal when the implied
// speed exceeds the ceiling. A first-ever sample has no predecessor and is
// skipped, not an error. Samples with accuracy worse than the floor are
// excluded to avoid radio-noise false positives.
func (m *Monitor) checkSpeed(ctx context.Context, sample *LocationSample) *FraudSignal {
	if sample.AccuracyMeters > m.cfg.AccuracyFloorMeters {
		return nil
	}

	prev, err := m.samples.LastBefore(ctx, sample.AgentID, sample.RecordedAt)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			m.logger.WarnContext(ctx, "previous sample lookup failed", "error", err)
		}
		return nil
	}
	if prev.AccuracyMeters > m.cfg.AccuracyFloorMeters {
		return nil
	}

	dt := sample.RecordedAt.Sub(prev.RecordedAt)
	if dt <= 0 {
		return nil
	}

	meters := geofence.Distance(
		geofence.Point{Lat: prev.Latitude, Lon: prev.Longitude},
		geofence.Point{Lat: sample.Latitude, Lon: sample.Longitude},
	)
	speedKmh := (float64(meters) / 1000) / dt.Hours()
	if speedKmh <= m.cfg.SpeedCeilingKmh {
		return nil
	}

	return m.raise(ctx, sample, KindGPSSpoofing, SeverityHigh, map[string]any{
		"classification":    "teleportation",
		"implied_speed_kmh": speedKmh,
		"distance_meters":   meters,
		"elapsed_seconds":   dt.Seconds(),
	})
}

// raise persists a fraud signal and fans it out. Signal persistence failures
// are logged but do not abort sample processing: detection visibility beats
// strict durability here.
func (m *Monitor) raise(ctx context.Context, sample *LocationSample, kind SignalKind, severity Severity, details map[string]any) *FraudSignal {
	signal := &FraudSignal{
		ID:        id.NewSignalID(),
		AgentID:   sample.AgentID,
		EventID:   sample.EventID,
		Kind:      kind,
		Severity:  severity,
		Details:   details,
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		CreatedAt: sample.RecordedAt,
	}
	if err := m.signals.Insert(ctx, signal); err != nil {
		m.logger.ErrorContext(ctx, "fraud signal insert failed",
			"kind", kind, "agent_id", sample.AgentID, "error", err)
	}

	if m.metrics != nil {
		m.metrics.FraudSignals.WithLabelValues(string(kind), string(severity)).Inc()
	}
	if m.auditor != nil {
		m.auditor.Emit(ctx, audit.Event{
			Timestamp: signal.CreatedAt,
			Action:    audit.ActionFraudSignal,
			AgentID:   signal.AgentID,
			EventID:   derefEventID(signal.EventID),
			RequestID: requestcontext.RequestID(ctx),
			Reason:    string(kind),
		})
	}
	if m.broadcaster != nil {
		payload := signalPayload(signal)
		m.broadcaster.PublishToRoom(realtime.RoleRoom(string(id.RoleSupervisor)), realtime.EventFraudSignal, payload)
		if signal.EventID != nil {
			m.broadcaster.PublishToRoom(realtime.EventRoom(signal.EventID.String()), realtime.EventFraudSignal, payload)
		}
	}

	m.logger.WarnContext(ctx, "fraud signal raised",
		"kind", kind,
		"severity", severity,
		"agent_id", sample.AgentID,
	)
	return signal
}

// alertSupervisors sends the best-effort escalation notification. Failures
// are logged, never propagated.
func (m *Monitor) alertSupervisors(ctx context.Context, event *schedule.Event, sample *LocationSample, message string) {
	if m.notifier == nil {
		return
	}
	recipients := make([]string, 0, len(event.Supervisors))
	for _, s := range event.Supervisors {
		recipients = append(recipients, s.String())
	}
	err := m.notifier.Send(ctx, notify.Notification{
		Event:      realtime.EventFraudSignal,
		Recipients: recipients,
		Payload: map[string]any{
			"agent_id": sample.AgentID.String(),
			"event_id": event.ID.String(),
			"message":  message,
		},
	})
	if err != nil {
		m.logger.WarnContext(ctx, "supervisor alert dispatch failed", "error", err)
	}
}

// ResolveSignal closes a fraud signal with a resolution note.
func (m *Monitor) ResolveSignal(ctx context.Context, signalID id.SignalID, resolvedBy, resolution string) (*FraudSignal, error) {
	now := requestcontext.Now(ctx)
	signal, err := m.signals.Resolve(ctx, signalID, resolvedBy, resolution, now)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, domainerrors.New(domainerrors.CodeNotFound, "fraud signal not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, domainerrors.New(domainerrors.CodeConflict, "fraud signal is already resolved")
		}
		return nil, fmt.Errorf("resolve fraud signal: %w", err)
	}
	if m.auditor != nil {
		m.auditor.Emit(ctx, audit.Event{
			Timestamp: now,
			Action:    audit.ActionSignalResolved,
			ActorID:   resolvedBy,
			AgentID:   signal.AgentID,
			EventID:   derefEventID(signal.EventID),
			RequestID: requestcontext.RequestID(ctx),
			Reason:    resolution,
		})
	}
	if m.broadcaster != nil {
		m.broadcaster.PublishToRoom(realtime.RoleRoom(string(id.RoleSupervisor)), realtime.EventSignalResolved, signalPayload(signal))
	}
	return signal, nil
}

// ListSignals returns fraud signals matching the filter.
func (m *Monitor) ListSignals(ctx context.Context, filter SignalFilter) ([]*FraudSignal, error) {
	return m.signals.List(ctx, filter)
}

// History returns an agent's recent samples, newest first.
func (m *Monitor) History(ctx context.Context, agentID id.AgentID, limit int) ([]*LocationSample, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return m.samples.ListByAgent(ctx, agentID, limit)
}

func signalPayload(s *FraudSignal) map[string]any {
	payload := map[string]any{
		"id":       s.ID.String(),
		"agent_id": s.AgentID.String(),
		"kind":     string(s.Kind),
		"severity": string(s.Severity),
		"details":  s.Details,
	}
	if s.EventID != nil {
		payload["event_id"] = s.EventID.String()
	}
	return payload
}

func derefEventID(eventID *id.EventID) id.EventID {
	if eventID == nil {
		return id.EventID{}
	}
	return *eventID
}
