package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"sentra/internal/audit"
	"sentra/internal/geofence"
	"sentra/internal/identity"
	"sentra/internal/integrity"
	"sentra/internal/notify"
	"sentra/internal/platform/config"
	"sentra/internal/platform/metrics"
	"sentra/internal/policy"
	"sentra/internal/realtime"
	"sentra/internal/schedule"
	id "sentra/pkg/domain"
	domainerrors "sentra/pkg/domain-errors"
	"sentra/pkg/platform/sentinel"
	"sentra/pkg/requestcontext"
)

var tracer = otel.Tracer("sentra/attendance")

// Registry is the check-in/check-out state machine. All attendance mutations
// flow through it; the store's uniqueness constraint backs the
// one-record-per-(agent, event, day) guarantee under concurrent actors.
type Registry struct {
	store    Store
	resolver *DuplicateResolver
	schedule schedule.Store
	monitor  *integrity.Monitor
	cfg      config.FraudConfig

	verifier    identity.Verifier
	notifier    notify.Dispatcher
	broadcaster realtime.Publisher
	auditor     *audit.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithVerifier attaches the external facial verification collaborator.
func WithVerifier(v identity.Verifier) RegistryOption {
	return func(r *Registry) { r.verifier = v }
}

// WithNotifier attaches the alerting collaborator.
func WithNotifier(d notify.Dispatcher) RegistryOption {
	return func(r *Registry) { r.notifier = d }
}

// WithBroadcaster attaches the realtime fan-out.
func WithBroadcaster(p realtime.Publisher) RegistryOption {
	return func(r *Registry) { r.broadcaster = p }
}

// WithAuditor attaches the audit trail publisher.
func WithAuditor(p *audit.Publisher) RegistryOption {
	return func(r *Registry) { r.auditor = p }
}

// WithRegistryMetrics attaches prometheus metrics.
func WithRegistryMetrics(mx *metrics.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = mx }
}

// NewRegistry constructs the attendance registry.
func NewRegistry(
	store Store,
	sched schedule.Store,
	monitor *integrity.Monitor,
	cfg config.FraudConfig,
	logger *slog.Logger,
	opts ...RegistryOption,
) *Registry {
	r := &Registry{
		store:    store,
		resolver: NewDuplicateResolver(store),
		schedule: sched,
		monitor:  monitor,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckInInput is one check-in request. AgentID overrides the subject when a
// supervisor or admin acts on an agent's behalf.
type CheckInInput struct {
	EventID          id.EventID
	AgentID          *id.AgentID
	Latitude         float64
	Longitude        float64
	Accuracy         float64
	PhotoRef         string
	Method           Method
	FacialVerified   *bool
	FacialMatchScore *float64
	// DeviceInfo is the client-reported device description; the parsed
	// User-Agent is the fallback.
	DeviceInfo string
	Notes      string
}

// CheckInResult carries the committed record together with the geofence
// verdict and any advisory integrity alerts.
type CheckInResult struct {
	Record  *Record
	Verdict geofence.Verdict
	Alerts  []string
}

// CheckIn runs the NotStarted -> CheckedIn transition. Exactly one record
// survives concurrent attempts for the same (agent, event, day); every loser
// receives a conflict naming the winner.
func (r *Registry) CheckIn(ctx context.Context, input CheckInInput) (*CheckInResult, error) {
	ctx, span := tracer.Start(ctx, "attendance.CheckIn")
	defer span.End()

	if err := validateCoordinates(input.Latitude, input.Longitude); err != nil {
		return nil, err
	}
	if input.EventID.IsNil() {
		return nil, domainerrors.New(domainerrors.CodeValidation, "eventId is required")
	}
	if input.Method == "" {
		input.Method = MethodManual
	}
	if !input.Method.Valid() {
		return nil, domainerrors.New(domainerrors.CodeValidation, "unknown check-in method").
			WithDetails(map[string]any{"method": string(input.Method)})
	}

	actor := requestcontext.ActorID(ctx)
	role := requestcontext.ActorRole(ctx)
	agentID := id.AgentID(actor)
	if input.AgentID != nil {
		agentID = *input.AgentID
	}
	span.SetAttributes(attribute.String("agent_id", agentID.String()))

	if !policy.Allow(role, actor, agentID, policy.ActionCheckIn) {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "actor may not check in for this agent")
	}

	event, err := r.eventByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if err := r.requireConfirmedAssignment(ctx, agentID, event.ID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	date := DateOf(now)

	// Advisory pre-check: catches most duplicates before any work. The
	// insert below is the authoritative gate.
	existing, err := r.resolver.Existing(ctx, agentID, event.ID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		r.countDuplicate()
		return nil, r.resolver.ConflictWith(existing)
	}

	verdict := geofence.Evaluate(
		geofence.Point{Lat: input.Latitude, Lon: input.Longitude},
		event.Center, event.RadiusMeters,
	)

	status := StatusPresent
	if now.After(event.CheckInAt.Add(r.cfg.GraceWindow)) {
		status = StatusLate
	}

	score, verified := r.verifyFace(ctx, agentID, input)

	rec := &Record{
		ID:                   id.NewAttendanceID(),
		AgentID:              agentID,
		EventID:              event.ID,
		Date:                 date,
		CheckInAt:            &now,
		CheckInLat:           &input.Latitude,
		CheckInLon:           &input.Longitude,
		Status:               status,
		CheckInMethod:        input.Method,
		IsWithinGeofence:     verdict.IsWithin(),
		DistanceFromLocation: verdict.DistanceMeters,
		Source:               SourceForRole(role),
		FacialMatchScore:     score,
		FacialVerified:       verified,
		Notes:                input.Notes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if rec.Source != SourceSelf {
		rec.CheckedInBy = &actor
	}

	if err := r.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the race to another actor. Surface the winner.
			r.countDuplicate()
			return nil, r.resolver.Conflict(ctx, agentID, event.ID, date)
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}

	// History is written only for the committed record; a losing concurrent
	// attempt must not leave a sample behind.
	alerts := r.recordMovement(ctx, agentID, event.ID, input, now)

	if r.metrics != nil {
		r.metrics.CheckIns.WithLabelValues(string(status)).Inc()
	}
	r.broadcast(event.ID, agentID, realtime.EventCheckedIn, recordPayload(rec))
	if status == StatusLate {
		r.notifySupervisors(ctx, event, realtime.EventCheckedIn, map[string]any{
			"agent_id": agentID.String(),
			"event_id": event.ID.String(),
			"message":  "agent checked in late",
		})
	}

	r.logger.InfoContext(ctx, "check-in committed",
		"agent_id", agentID,
		"event_id", event.ID,
		"status", status,
	)
	return &CheckInResult{Record: rec, Verdict: verdict, Alerts: alerts}, nil
}

// CheckOutInput is one check-out request, scoped by attendance id.
type CheckOutInput struct {
	Latitude  float64
	Longitude float64
	Notes     string
}

// CheckOut runs the CheckedIn -> CheckedOut transition. Checking out before
// the event's scheduled end downgrades the status to early_departure.
func (r *Registry) CheckOut(ctx context.Context, attendanceID id.AttendanceID, input CheckOutInput) (*Record, error) {
	ctx, span := tracer.Start(ctx, "attendance.CheckOut")
	defer span.End()

	if err := validateCoordinates(input.Latitude, input.Longitude); err != nil {
		return nil, err
	}

	rec, err := r.findRecord(ctx, attendanceID)
	if err != nil {
		return nil, err
	}

	actor := requestcontext.ActorID(ctx)
	role := requestcontext.ActorRole(ctx)
	if !policy.Allow(role, actor, rec.AgentID, policy.ActionCheckOut) {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "actor may not check out this agent")
	}
	if !rec.CheckedIn() {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "agent has not checked in")
	}
	if rec.CheckedOut() {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "attendance is already checked out")
	}

	now := requestcontext.Now(ctx)
	if event, err := r.schedule.EventByID(ctx, rec.EventID); err == nil {
		if now.Before(event.CheckOutAt) && (rec.Status == StatusPresent || rec.Status == StatusLate) {
			rec.Status = StatusEarlyDeparture
		}
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("load event: %w", err)
	}

	hours := Hours(*rec.CheckInAt, now)
	rec.CheckOutAt = &now
	rec.CheckOutLat = &input.Latitude
	rec.CheckOutLon = &input.Longitude
	rec.TotalHours = &hours
	rec.Notes = appendNote(rec.Notes, input.Notes)
	rec.UpdatedAt = now

	if err := r.update(ctx, rec); err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.CheckOuts.Inc()
	}
	r.broadcast(rec.EventID, rec.AgentID, realtime.EventCheckedOut, recordPayload(rec))

	r.logger.InfoContext(ctx, "check-out committed",
		"agent_id", rec.AgentID,
		"event_id", rec.EventID,
		"status", rec.Status,
		"total_hours", hours,
	)
	return rec, nil
}

// MarkAbsentInput is the explicit administrative absence action.
type MarkAbsentInput struct {
	AgentID id.AgentID
	EventID id.EventID
	Reason  string
}

// MarkAbsent runs the NotStarted -> Absent transition. Rejected when any
// record already occupies the (agent, event, day) slot.
func (r *Registry) MarkAbsent(ctx context.Context, input MarkAbsentInput) (*Record, error) {
	ctx, span := tracer.Start(ctx, "attendance.MarkAbsent")
	defer span.End()

	if input.EventID.IsNil() {
		return nil, domainerrors.New(domainerrors.CodeValidation, "eventId is required")
	}
	if input.AgentID.IsNil() {
		return nil, domainerrors.New(domainerrors.CodeValidation, "agentId is required")
	}

	actor := requestcontext.ActorID(ctx)
	role := requestcontext.ActorRole(ctx)
	if !policy.Allow(role, actor, input.AgentID, policy.ActionMarkAbsent) {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "actor may not mark this agent absent")
	}

	event, err := r.eventByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	rec := &Record{
		ID:            id.NewAttendanceID(),
		AgentID:       input.AgentID,
		EventID:       event.ID,
		Date:          DateOf(now),
		Status:        StatusAbsent,
		CheckInMethod: MethodManual,
		Source:        SourceForRole(role),
		CheckedInBy:   &actor,
		Notes:         input.Reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, r.resolver.Conflict(ctx, input.AgentID, event.ID, rec.Date)
		}
		return nil, fmt.Errorf("insert absence: %w", err)
	}

	if r.auditor != nil {
		r.auditor.Emit(ctx, audit.Event{
			Timestamp: now,
			Action:    audit.ActionAbsentMarked,
			ActorID:   actor.String(),
			ActorRole: string(role),
			AgentID:   rec.AgentID,
			EventID:   rec.EventID,
			RequestID: requestcontext.RequestID(ctx),
			Reason:    input.Reason,
		})
	}
	if r.metrics != nil {
		r.metrics.CheckIns.WithLabelValues(string(StatusAbsent)).Inc()
	}
	r.broadcast(rec.EventID, rec.AgentID, realtime.EventAbsentMarked, recordPayload(rec))
	r.notifySupervisors(ctx, event, realtime.EventAbsentMarked, map[string]any{
		"agent_id": rec.AgentID.String(),
		"event_id": rec.EventID.String(),
		"reason":   input.Reason,
	})

	return rec, nil
}

// CorrectionInput is the administrative edit path. Only fields present are
// touched; Reason is mandatory because the correction bypasses transition
// guards.
type CorrectionInput struct {
	Status     *Status
	CheckInAt  *time.Time
	CheckOutAt *time.Time
	Notes      *string
	Reason     string
}

// Correct applies a manual correction, stamps the verifier, and logs before
// and after snapshots to the audit trail.
func (r *Registry) Correct(ctx context.Context, attendanceID id.AttendanceID, input CorrectionInput) (*Record, error) {
	ctx, span := tracer.Start(ctx, "attendance.Correct")
	defer span.End()

	if input.Reason == "" {
		return nil, domainerrors.New(domainerrors.CodeValidation, "correction reason is required")
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, domainerrors.New(domainerrors.CodeValidation, "unknown status").
			WithDetails(map[string]any{"status": string(*input.Status)})
	}

	actor := requestcontext.ActorID(ctx)
	role := requestcontext.ActorRole(ctx)

	rec, err := r.findRecord(ctx, attendanceID)
	if err != nil {
		return nil, err
	}
	if !policy.Allow(role, actor, rec.AgentID, policy.ActionManualCorrection) {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "actor may not correct attendance records")
	}

	before := rec.Snapshot()
	now := requestcontext.Now(ctx)

	if input.Status != nil {
		rec.Status = *input.Status
	}
	if input.CheckInAt != nil {
		rec.CheckInAt = input.CheckInAt
	}
	if input.CheckOutAt != nil {
		rec.CheckOutAt = input.CheckOutAt
	}
	if input.Notes != nil {
		rec.Notes = *input.Notes
	}
	if rec.CheckInAt != nil && rec.CheckOutAt != nil {
		hours := Hours(*rec.CheckInAt, *rec.CheckOutAt)
		rec.TotalHours = &hours
	}
	rec.VerifiedBy = &actor
	rec.VerifiedAt = &now
	rec.UpdatedAt = now

	if err := r.update(ctx, rec); err != nil {
		return nil, err
	}

	if r.auditor != nil {
		r.auditor.Emit(ctx, audit.Event{
			Timestamp: now,
			Action:    audit.ActionManualCorrection,
			ActorID:   actor.String(),
			ActorRole: string(role),
			AgentID:   rec.AgentID,
			EventID:   rec.EventID,
			RequestID: requestcontext.RequestID(ctx),
			Reason:    input.Reason,
			Before:    before,
			After:     rec.Snapshot(),
		})
	}
	r.broadcast(rec.EventID, rec.AgentID, realtime.EventCorrected, recordPayload(rec))

	r.logger.InfoContext(ctx, "manual correction applied",
		"attendance_id", rec.ID,
		"actor_id", actor,
		"reason", input.Reason,
	)
	return rec, nil
}

// GetByID returns one attendance record.
func (r *Registry) GetByID(ctx context.Context, attendanceID id.AttendanceID) (*Record, error) {
	return r.findRecord(ctx, attendanceID)
}

// TodayFor returns an agent's records for the current request day.
func (r *Registry) TodayFor(ctx context.Context, agentID id.AgentID) ([]*Record, error) {
	return r.store.ListByAgentOnDate(ctx, agentID, DateOf(requestcontext.Now(ctx)))
}

// ListByEvent returns an event's records for a date.
func (r *Registry) ListByEvent(ctx context.Context, eventID id.EventID, date time.Time) ([]*Record, error) {
	return r.store.ListByEvent(ctx, eventID, date)
}

// recordMovement appends the check-in position to the agent's movement
// history through the integrity monitor. Best-effort: a history failure never
// aborts the check-in.
func (r *Registry) recordMovement(ctx context.Context, agentID id.AgentID, eventID id.EventID, input CheckInInput, now time.Time) []string {
	if r.monitor == nil {
		return nil
	}
	device := input.DeviceInfo
	if device == "" {
		device = requestcontext.DeviceInfo(ctx)
	}
	sample := &integrity.LocationSample{
		ID:             id.NewSampleID(),
		AgentID:        agentID,
		EventID:        &eventID,
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
		AccuracyMeters: input.Accuracy,
		RecordedAt:     now,
		DeviceInfo:     device,
	}
	assessment, err := r.monitor.Process(ctx, sample)
	if err != nil {
		r.logger.WarnContext(ctx, "movement history write failed", "error", err)
		return nil
	}
	return assessment.Alerts
}

// verifyFace resolves the facial verification outcome. Caller-supplied values
// win; otherwise the external verifier is consulted best-effort.
func (r *Registry) verifyFace(ctx context.Context, agentID id.AgentID, input CheckInInput) (*float64, bool) {
	if input.FacialMatchScore != nil {
		verified := input.FacialVerified != nil && *input.FacialVerified
		return input.FacialMatchScore, verified
	}
	if input.Method != MethodFacial || input.PhotoRef == "" || r.verifier == nil {
		return nil, false
	}
	result, err := r.verifier.Verify(ctx, agentID, input.PhotoRef)
	if err != nil {
		r.logger.WarnContext(ctx, "facial verification unavailable", "error", err)
		return nil, false
	}
	return &result.Score, result.Verified
}

func (r *Registry) eventByID(ctx context.Context, eventID id.EventID) (*schedule.Event, error) {
	event, err := r.schedule.EventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "event not found")
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	return event, nil
}

func (r *Registry) requireConfirmedAssignment(ctx context.Context, agentID id.AgentID, eventID id.EventID) error {
	assignment, err := r.schedule.AssignmentFor(ctx, agentID, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeForbidden, "agent is not assigned to this event")
		}
		return fmt.Errorf("load assignment: %w", err)
	}
	if !assignment.Confirmed {
		return domainerrors.New(domainerrors.CodeForbidden, "assignment is not confirmed")
	}
	return nil
}

func (r *Registry) findRecord(ctx context.Context, attendanceID id.AttendanceID) (*Record, error) {
	rec, err := r.store.FindByID(ctx, attendanceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "attendance record not found")
		}
		return nil, fmt.Errorf("load attendance record: %w", err)
	}
	return rec, nil
}

func (r *Registry) update(ctx context.Context, rec *Record) error {
	if err := r.store.Update(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "attendance record not found")
		}
		return fmt.Errorf("update attendance record: %w", err)
	}
	return nil
}

// broadcast fans a state change out to the event room, the supervisor role
// room, and the subject agent's direct connections.
func (r *Registry) broadcast(eventID id.EventID, agentID id.AgentID, event string, payload map[string]any) {
	if r.broadcaster == nil {
		return
	}
	r.broadcaster.PublishToRoom(realtime.EventRoom(eventID.String()), event, payload)
	r.broadcaster.PublishToRoom(realtime.RoleRoom(string(id.RoleSupervisor)), event, payload)
	r.broadcaster.PublishToUser(agentID.String(), event, payload)
}

// notifySupervisors dispatches a best-effort alert to the event's
// supervisors. Failures are logged, never propagated.
func (r *Registry) notifySupervisors(ctx context.Context, event *schedule.Event, name string, payload map[string]any) {
	if r.notifier == nil || len(event.Supervisors) == 0 {
		return
	}
	recipients := make([]string, 0, len(event.Supervisors))
	for _, s := range event.Supervisors {
		recipients = append(recipients, s.String())
	}
	err := r.notifier.Send(ctx, notify.Notification{
		Event:      name,
		Recipients: recipients,
		Payload:    payload,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "supervisor notification failed", "error", err)
	}
}

func (r *Registry) countDuplicate() {
	if r.metrics != nil {
		r.metrics.DuplicateAttempts.Inc()
	}
}

func recordPayload(rec *Record) map[string]any {
	payload := map[string]any{
		"attendance_id": rec.ID.String(),
		"agent_id":      rec.AgentID.String(),
		"event_id":      rec.EventID.String(),
		"date":          rec.Date.Format("2006-01-02"),
		"status":        string(rec.Status),
	}
	if rec.CheckInAt != nil {
		payload["check_in_at"] = rec.CheckInAt.UTC().Format(time.RFC3339)
	}
	if rec.CheckOutAt != nil {
		payload["check_out_at"] = rec.CheckOutAt.UTC().Format(time.RFC3339)
	}
	if rec.TotalHours != nil {
		payload["total_hours"] = *rec.TotalHours
	}
	return payload
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return domainerrors.New(domainerrors.CodeValidation, "latitude out of range").
			WithDetails(map[string]any{"latitude": lat})
	}
	if lon < -180 || lon > 180 {
		return domainerrors.New(domainerrors.CodeValidation, "longitude out of range").
			WithDetails(map[string]any{"longitude": lon})
	}
	return nil
}

func appendNote(existing, added string) string {
	if added == "" {
		return existing
	}
	if existing == "" {
		return added
	}
	return existing + "\n" + added
}
