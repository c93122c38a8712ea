package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fieldops/fieldtrace/internal/models"
)

// EventRepository stores derived activity events (the event store).
type EventRepository struct {
	db *DB
}

// NewEventRepository creates the repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// InsertBatch appends events and sets their IDs. Events are never updated
// after this point.
func (r *EventRepository) InsertBatch(ctx context.Context, events []*models.ActivityEvent) error {
	query := `
		INSERT INTO activity_events (
			engineer_id, event_type, start_time, end_time, duration_min,
			latitude, longitude, address,
			distance_km, top_speed_kmh,
			start_latitude, start_longitude, end_latitude, end_longitude,
			start_address, end_address
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`

	for _, ev := range events {
		var (
			lat, lon                           *float64
			address                            *string
			distanceKm, topSpeedKmh            *float64
			startLat, startLon, endLat, endLon *float64
			startAddress, endAddress           *string
		)

		switch ev.Type {
		case models.EventStop:
			lat, lon = &ev.Stop.Latitude, &ev.Stop.Longitude
			address = &ev.Stop.Address
		case models.EventDrive:
			distanceKm, topSpeedKmh = &ev.Drive.DistanceKm, &ev.Drive.TopSpeedKmh
			startLat, startLon = &ev.Drive.StartLatitude, &ev.Drive.StartLongitude
			endLat, endLon = &ev.Drive.EndLatitude, &ev.Drive.EndLongitude
			startAddress, endAddress = &ev.Drive.StartAddress, &ev.Drive.EndAddress
		default:
			return fmt.Errorf("unknown event type %q", ev.Type)
		}

		err := r.db.Pool.QueryRow(ctx, query,
			ev.EngineerID, ev.Type, ev.StartTime, ev.EndTime, ev.DurationMin,
			lat, lon, address,
			distanceKm, topSpeedKmh,
			startLat, startLon, endLat, endLon,
			startAddress, endAddress,
		).Scan(&ev.ID)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return nil
}

const eventColumns = `
	id, engineer_id, event_type, start_time, end_time, duration_min,
	latitude, longitude, address,
	distance_km, top_speed_kmh,
	start_latitude, start_longitude, end_latitude, end_longitude,
	start_address, end_address
`

// LatestByEngineer returns the engineer's most recent event by end time, or
// (nil, nil) when none exists yet.
func (r *EventRepository) LatestByEngineer(ctx context.Context, engineerID int64) (*models.ActivityEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM activity_events WHERE engineer_id = $1
		ORDER BY end_time DESC LIMIT 1
	`
	ev, err := scanEvent(r.db.Pool.QueryRow(ctx, query, engineerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest event: %w", err)
	}
	return ev, nil
}

// ListByEngineerInRange returns events whose start time is within [from, to),
// ordered by start time.
func (r *EventRepository) ListByEngineerInRange(ctx context.Context, engineerID int64, from, to time.Time) ([]models.ActivityEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM activity_events
		WHERE engineer_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`
	rows, err := r.db.Pool.Query(ctx, query, engineerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events in range: %w", err)
	}
	defer rows.Close()

	var events []models.ActivityEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}

	return events, nil
}

func scanEvent(row pgx.Row) (*models.ActivityEvent, error) {
	ev := &models.ActivityEvent{}
	var (
		lat, lon                           *float64
		address                            *string
		distanceKm, topSpeedKmh            *float64
		startLat, startLon, endLat, endLon *float64
		startAddress, endAddress           *string
	)

	err := row.Scan(
		&ev.ID, &ev.EngineerID, &ev.Type, &ev.StartTime, &ev.EndTime, &ev.DurationMin,
		&lat, &lon, &address,
		&distanceKm, &topSpeedKmh,
		&startLat, &startLon, &endLat, &endLon,
		&startAddress, &endAddress,
	)
	if err != nil {
		return nil, err
	}

	switch ev.Type {
	case models.EventStop:
		ev.Stop = &models.StopDetail{}
		if lat != nil {
			ev.Stop.Latitude = *lat
		}
		if lon != nil {
			ev.Stop.Longitude = *lon
		}
		if address != nil {
			ev.Stop.Address = *address
		}
	case models.EventDrive:
		ev.Drive = &models.DriveDetail{}
		if distanceKm != nil {
			ev.Drive.DistanceKm = *distanceKm
		}
		if topSpeedKmh != nil {
			ev.Drive.TopSpeedKmh = *topSpeedKmh
		}
		if startLat != nil {
			ev.Drive.StartLatitude = *startLat
		}
		if startLon != nil {
			ev.Drive.StartLongitude = *startLon
		}
		if endLat != nil {
			ev.Drive.EndLatitude = *endLat
		}
		if endLon != nil {
			ev.Drive.EndLongitude = *endLon
		}
		if startAddress != nil {
			ev.Drive.StartAddress = *startAddress
		}
		if endAddress != nil {
			ev.Drive.EndAddress = *endAddress
		}
	}

	return ev, nil
}
