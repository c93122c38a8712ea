package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the connection pool shared by the repositories.
type DB struct {
	Pool *pgxpool.Pool
}

// New connects to the database.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate applies the schema.
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateEngineers,
		migrationCreateLocationSamples,
		migrationCreateActivityEvents,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

const migrationCreateEngineers = `
CREATE TABLE IF NOT EXISTS engineers (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    phone VARCHAR(32),
    timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

const migrationCreateLocationSamples = `
CREATE TABLE IF NOT EXISTS location_samples (
    id BIGSERIAL PRIMARY KEY,
    engineer_id BIGINT NOT NULL REFERENCES engineers(id),
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    speed DOUBLE PRECISION,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
    processed BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_location_samples_engineer_recorded ON location_samples(engineer_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_location_samples_unprocessed ON location_samples(engineer_id) WHERE NOT processed;
`

const migrationCreateActivityEvents = `
CREATE TABLE IF NOT EXISTS activity_events (
    id BIGSERIAL PRIMARY KEY,
    engineer_id BIGINT NOT NULL REFERENCES engineers(id),
    event_type VARCHAR(10) NOT NULL,
    start_time TIMESTAMP WITH TIME ZONE NOT NULL,
    end_time TIMESTAMP WITH TIME ZONE NOT NULL,
    duration_min INT NOT NULL DEFAULT 0,

    -- stop fields
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    address TEXT,

    -- drive fields
    distance_km DOUBLE PRECISION,
    top_speed_kmh DOUBLE PRECISION,
    start_latitude DOUBLE PRECISION,
    start_longitude DOUBLE PRECISION,
    end_latitude DOUBLE PRECISION,
    end_longitude DOUBLE PRECISION,
    start_address TEXT,
    end_address TEXT
);
CREATE INDEX IF NOT EXISTS idx_activity_events_engineer_start ON activity_events(engineer_id, start_time);
CREATE INDEX IF NOT EXISTS idx_activity_events_engineer_end ON activity_events(engineer_id, end_time);
`
