package integrity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "sentra/pkg/domain"
	"sentra/pkg/platform/sentinel"
)

// PostgresSampleStore persists location samples. The (agent_id, recorded_at)
// index backs the LastBefore ordering query.
type PostgresSampleStore struct {
	db *sql.DB
}

func NewPostgresSampleStore(db *sql.DB) *PostgresSampleStore {
	return &PostgresSampleStore{db: db}
}

func (s *PostgresSampleStore) Insert(ctx context.Context, sample *LocationSample) error {
	query := `
		INSERT INTO location_samples (
			id, agent_id, event_id, latitude, longitude, accuracy_m,
			speed_kmh, heading, battery_level, is_mock_location,
			recorded_at, is_within_geofence, distance_from_event, device_info
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(sample.ID),
		uuid.UUID(sample.AgentID),
		eventIDValue(sample.EventID),
		sample.Latitude,
		sample.Longitude,
		sample.AccuracyMeters,
		sample.SpeedKmh,
		sample.Heading,
		sample.BatteryLevel,
		sample.IsMockLocation,
		sample.RecordedAt,
		sample.IsWithinGeofence,
		sample.DistanceFromEvent,
		sample.DeviceInfo,
	)
	if err != nil {
		return fmt.Errorf("insert location sample: %w", err)
	}
	return nil
}

func (s *PostgresSampleStore) LastBefore(ctx context.Context, agentID id.AgentID, t time.Time) (*LocationSample, error) {
	query := sampleSelect + `
		WHERE agent_id = $1 AND recorded_at < $2
		ORDER BY recorded_at DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(agentID), t)
	sample, err := scanSample(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query previous sample: %w", err)
	}
	return sample, nil
}

func (s *PostgresSampleStore) ListByAgent(ctx context.Context, agentID id.AgentID, limit int) ([]*LocationSample, error) {
	query := sampleSelect + `
		WHERE agent_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(agentID), limit)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []*LocationSample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return out, nil
}

const sampleSelect = `
	SELECT id, agent_id, event_id, latitude, longitude, accuracy_m,
	       speed_kmh, heading, battery_level, is_mock_location,
	       recorded_at, is_within_geofence, distance_from_event, device_info
	FROM location_samples
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (*LocationSample, error) {
	var (
		sample  LocationSample
		sid     uuid.UUID
		agentID uuid.UUID
		eventID *uuid.UUID
	)
	err := row.Scan(
		&sid, &agentID, &eventID,
		&sample.Latitude, &sample.Longitude, &sample.AccuracyMeters,
		&sample.SpeedKmh, &sample.Heading, &sample.BatteryLevel,
		&sample.IsMockLocation, &sample.RecordedAt,
		&sample.IsWithinGeofence, &sample.DistanceFromEvent, &sample.DeviceInfo,
	)
	if err != nil {
		return nil, err
	}
	sample.ID = id.SampleID(sid)
	sample.AgentID = id.AgentID(agentID)
	if eventID != nil {
		e := id.EventID(*eventID)
		sample.EventID = &e
	}
	return &sample, nil
}

// PostgresSignalStore persists fraud signals with a JSONB details payload.
type PostgresSignalStore struct {
	db *sql.DB
}

func NewPostgresSignalStore(db *sql.DB) *PostgresSignalStore {
	return &PostgresSignalStore{db: db}
}

func (s *PostgresSignalStore) Insert(ctx context.Context, signal *FraudSignal) error {
	details, err := json.Marshal(signal.Details)
	if err != nil {
		return fmt.Errorf("marshal signal details: %w", err)
	}
	query := `
		INSERT INTO fraud_signals (
			id, agent_id, event_id, kind, severity, details,
			latitude, longitude, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(signal.ID),
		uuid.UUID(signal.AgentID),
		eventIDValue(signal.EventID),
		string(signal.Kind),
		string(signal.Severity),
		details,
		signal.Latitude,
		signal.Longitude,
		signal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fraud signal: %w", err)
	}
	return nil
}

func (s *PostgresSignalStore) FindByID(ctx context.Context, signalID id.SignalID) (*FraudSignal, error) {
	row := s.db.QueryRowContext(ctx, signalSelect+` WHERE id = $1`, uuid.UUID(signalID))
	signal, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query fraud signal: %w", err)
	}
	return signal, nil
}

func (s *PostgresSignalStore) List(ctx context.Context, filter SignalFilter) ([]*FraudSignal, error) {
	query := signalSelect + ` WHERE 1=1`
	args := []any{}
	if filter.AgentID != nil {
		args = append(args, uuid.UUID(*filter.AgentID))
		query += fmt.Sprintf(" AND agent_id = $%d", len(args))
	}
	if filter.EventID != nil {
		args = append(args, uuid.UUID(*filter.EventID))
		query += fmt.Sprintf(" AND event_id = $%d", len(args))
	}
	if filter.Unresolved {
		query += " AND resolved_at IS NULL"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fraud signals: %w", err)
	}
	defer rows.Close()

	var out []*FraudSignal
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fraud signal: %w", err)
		}
		out = append(out, signal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fraud signals: %w", err)
	}
	return out, nil
}

func (s *PostgresSignalStore) Resolve(ctx context.Context, signalID id.SignalID, resolvedBy, resolution string, at time.Time) (*FraudSignal, error) {
	query := `
		UPDATE fraud_signals
		SET resolved_by = $2, resolution = $3, resolved_at = $4
		WHERE id = $1 AND resolved_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(signalID), resolvedBy, resolution, at)
	if err != nil {
		return nil, fmt.Errorf("resolve fraud signal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("resolve fraud signal: %w", err)
	}
	if affected == 0 {
		// Either missing or already resolved; distinguish for the caller.
		if _, err := s.FindByID(ctx, signalID); err != nil {
			return nil, err
		}
		return nil, sentinel.ErrInvalidState
	}
	return s.FindByID(ctx, signalID)
}

const signalSelect = `
	SELECT id, agent_id, event_id, kind, severity, details,
	       latitude, longitude, created_at, resolved_by, resolved_at, resolution
	FROM fraud_signals
`

func scanSignal(row rowScanner) (*FraudSignal, error) {
	var (
		signal  FraudSignal
		sid     uuid.UUID
		agentID uuid.UUID
		eventID *uuid.UUID
		kind    string
		sev     string
		details []byte
	)
	err := row.Scan(
		&sid, &agentID, &eventID, &kind, &sev, &details,
		&signal.Latitude, &signal.Longitude, &signal.CreatedAt,
		&signal.ResolvedBy, &signal.ResolvedAt, &signal.Resolution,
	)
	if err != nil {
		return nil, err
	}
	signal.ID = id.SignalID(sid)
	signal.AgentID = id.AgentID(agentID)
	if eventID != nil {
		e := id.EventID(*eventID)
		signal.EventID = &e
	}
	signal.Kind = SignalKind(kind)
	signal.Severity = Severity(sev)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &signal.Details); err != nil {
			return nil, fmt.Errorf("unmarshal signal details: %w", err)
		}
	}
	return &signal, nil
}

// eventIDValue renders an optional event id as a nullable SQL parameter.
func eventIDValue(eventID *id.EventID) any {
	if eventID == nil {
		return nil
	}
	return uuid.UUID(*eventID)
}
