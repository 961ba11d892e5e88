//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const schema = `
CREATE TABLE attendance_records (
    id                     UUID PRIMARY KEY,
    agent_id               UUID NOT NULL,
    event_id               UUID NOT NULL,
    date                   DATE NOT NULL,
    check_in_at            TIMESTAMPTZ,
    check_out_at           TIMESTAMPTZ,
    check_in_lat           DOUBLE PRECISION,
    check_in_lon           DOUBLE PRECISION,
    check_out_lat          DOUBLE PRECISION,
    check_out_lon          DOUBLE PRECISION,
    status                 TEXT NOT NULL,
    check_in_method        TEXT NOT NULL,
    is_within_geofence     BOOLEAN,
    distance_from_location INTEGER NOT NULL DEFAULT 0,
    checked_in_by          UUID,
    source                 TEXT NOT NULL,
    facial_match_score     DOUBLE PRECISION,
    facial_verified        BOOLEAN NOT NULL DEFAULT FALSE,
    total_hours            DOUBLE PRECISION,
    verified_by            UUID,
    verified_at            TIMESTAMPTZ,
    notes                  TEXT NOT NULL DEFAULT '',
    created_at             TIMESTAMPTZ NOT NULL,
    updated_at             TIMESTAMPTZ NOT NULL,
    deleted_at             TIMESTAMPTZ
);

CREATE UNIQUE INDEX attendance_agent_event_date_key
    ON attendance_records (agent_id, event_id, date)
    WHERE deleted_at IS NULL;

CREATE TABLE location_samples (
    id                  UUID PRIMARY KEY,
    agent_id            UUID NOT NULL,
    event_id            UUID,
    latitude            DOUBLE PRECISION NOT NULL,
    longitude           DOUBLE PRECISION NOT NULL,
    accuracy_m          DOUBLE PRECISION NOT NULL,
    speed_kmh           DOUBLE PRECISION,
    heading             DOUBLE PRECISION,
    battery_level       DOUBLE PRECISION,
    is_mock_location    BOOLEAN NOT NULL DEFAULT FALSE,
    recorded_at         TIMESTAMPTZ NOT NULL,
    is_within_geofence  BOOLEAN,
    distance_from_event INTEGER,
    device_info         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX location_samples_agent_recorded_idx
    ON location_samples (agent_id, recorded_at DESC);

CREATE TABLE fraud_signals (
    id          UUID PRIMARY KEY,
    agent_id    UUID NOT NULL,
    event_id    UUID,
    kind        TEXT NOT NULL,
    severity    TEXT NOT NULL,
    details     JSONB NOT NULL DEFAULT '{}',
    latitude    DOUBLE PRECISION,
    longitude   DOUBLE PRECISION,
    created_at  TIMESTAMPTZ NOT NULL,
    resolved_by UUID,
    resolved_at TIMESTAMPTZ,
    resolution  TEXT
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the
// attendance schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a Postgres container, applies the schema and
// registers cleanup.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("sentra_test"),
		tcpostgres.WithUsername("sentra"),
		tcpostgres.WithPassword("sentra-test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateAll clears every table. Use between tests to ensure isolation.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx,
		`TRUNCATE attendance_records, location_samples, fraud_signals`)
	return err
}
