package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "sentra/pkg/domain"
	"sentra/pkg/platform/sentinel"
)

// PostgresStore persists attendance records. The partial unique index
//
//	CREATE UNIQUE INDEX attendance_agent_event_date_key
//	    ON attendance_records (agent_id, event_id, date)
//	    WHERE deleted_at IS NULL
//
// is the arbiter of the one-record-per-(agent, event, day) guarantee across
// server instances.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO attendance_records (
			id, agent_id, event_id, date,
			check_in_at, check_out_at,
			check_in_lat, check_in_lon, check_out_lat, check_out_lon,
			status, check_in_method,
			is_within_geofence, distance_from_location,
			checked_in_by, source,
			facial_match_score, facial_verified,
			total_hours, verified_by, verified_at, notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(rec.ID), uuid.UUID(rec.AgentID), uuid.UUID(rec.EventID), rec.Date,
		rec.CheckInAt, rec.CheckOutAt,
		rec.CheckInLat, rec.CheckInLon, rec.CheckOutLat, rec.CheckOutLon,
		string(rec.Status), string(rec.CheckInMethod),
		rec.IsWithinGeofence, rec.DistanceFromLocation,
		actorIDValue(rec.CheckedInBy), string(rec.Source),
		rec.FacialMatchScore, rec.FacialVerified,
		rec.TotalHours, actorIDValue(rec.VerifiedBy), rec.VerifiedAt, rec.Notes,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *Record) error {
	query := `
		UPDATE attendance_records
		SET check_in_at = $2, check_out_at = $3,
		    check_in_lat = $4, check_in_lon = $5,
		    check_out_lat = $6, check_out_lon = $7,
		    status = $8, is_within_geofence = $9, distance_from_location = $10,
		    facial_match_score = $11, facial_verified = $12,
		    total_hours = $13, verified_by = $14, verified_at = $15,
		    notes = $16, updated_at = $17
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		rec.CheckInAt, rec.CheckOutAt,
		rec.CheckInLat, rec.CheckInLon,
		rec.CheckOutLat, rec.CheckOutLon,
		string(rec.Status), rec.IsWithinGeofence, rec.DistanceFromLocation,
		rec.FacialMatchScore, rec.FacialVerified,
		rec.TotalHours, actorIDValue(rec.VerifiedBy), rec.VerifiedAt,
		rec.Notes, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update attendance record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attendance record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, attendanceID id.AttendanceID, at time.Time) error {
	query := `
		UPDATE attendance_records
		SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(attendanceID), at)
	if err != nil {
		return fmt.Errorf("delete attendance record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attendance record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, attendanceID id.AttendanceID) (*Record, error) {
	row := s.db.QueryRowContext(ctx, recordSelect+` WHERE id = $1 AND deleted_at IS NULL`, uuid.UUID(attendanceID))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query attendance record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, agentID id.AgentID, eventID id.EventID, date time.Time) (*Record, error) {
	query := recordSelect + `
		WHERE agent_id = $1 AND event_id = $2 AND date = $3 AND deleted_at IS NULL
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(agentID), uuid.UUID(eventID), DateOf(date))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query attendance record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListByEvent(ctx context.Context, eventID id.EventID, date time.Time) ([]*Record, error) {
	query := recordSelect + `
		WHERE event_id = $1 AND date = $2 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	return s.queryList(ctx, query, uuid.UUID(eventID), DateOf(date))
}

func (s *PostgresStore) ListByAgentOnDate(ctx context.Context, agentID id.AgentID, date time.Time) ([]*Record, error) {
	query := recordSelect + `
		WHERE agent_id = $1 AND date = $2 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	return s.queryList(ctx, query, uuid.UUID(agentID), DateOf(date))
}

func (s *PostgresStore) queryList(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return out, nil
}

const recordSelect = `
	SELECT id, agent_id, event_id, date,
	       check_in_at, check_out_at,
	       check_in_lat, check_in_lon, check_out_lat, check_out_lon,
	       status, check_in_method,
	       is_within_geofence, distance_from_location,
	       checked_in_by, source,
	       facial_match_score, facial_verified,
	       total_hours, verified_by, verified_at, notes,
	       created_at, updated_at
	FROM attendance_records
`

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec         Record
		recID       uuid.UUID
		agentID     uuid.UUID
		eventID     uuid.UUID
		status      string
		method      string
		checkedInBy *uuid.UUID
		source      string
		verifiedBy  *uuid.UUID
	)
	err := row.Scan(
		&recID, &agentID, &eventID, &rec.Date,
		&rec.CheckInAt, &rec.CheckOutAt,
		&rec.CheckInLat, &rec.CheckInLon, &rec.CheckOutLat, &rec.CheckOutLon,
		&status, &method,
		&rec.IsWithinGeofence, &rec.DistanceFromLocation,
		&checkedInBy, &source,
		&rec.FacialMatchScore, &rec.FacialVerified,
		&rec.TotalHours, &verifiedBy, &rec.VerifiedAt, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ID = id.AttendanceID(recID)
	rec.AgentID = id.AgentID(agentID)
	rec.EventID = id.EventID(eventID)
	rec.Status = Status(status)
	rec.CheckInMethod = Method(method)
	rec.Source = Source(source)
	if checkedInBy != nil {
		a := id.ActorID(*checkedInBy)
		rec.CheckedInBy = &a
	}
	if verifiedBy != nil {
		a := id.ActorID(*verifiedBy)
		rec.VerifiedBy = &a
	}
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func actorIDValue(actorID *id.ActorID) any {
	if actorID == nil {
		return nil
	}
	return uuid.UUID(*actorID)
}
