package service

import (
	"context"
	"time"

	"github.com/fieldops/fieldtrace/internal/geocoder"
	"github.com/fieldops/fieldtrace/internal/models"
)

// SampleStore is the ingest buffer surface the engine consumes.
type SampleStore interface {
	InsertBatch(ctx context.Context, samples []*models.LocationSample) error
	ListUnprocessed(ctx context.Context, engineerID int64) ([]models.LocationSample, error)
	MarkProcessed(ctx context.Context, ids []int64) error
	EngineersWithUnprocessed(ctx context.Context) ([]int64, error)
}

// EventStore is the durable, append-only activity history.
type EventStore interface {
	InsertBatch(ctx context.Context, events []*models.ActivityEvent) error
	// LatestByEngineer returns (nil, nil) when the engineer has no events yet.
	LatestByEngineer(ctx context.Context, engineerID int64) (*models.ActivityEvent, error)
	// ListByEngineerInRange returns events with start_time in [from, to),
	// ordered by start time.
	ListByEngineerInRange(ctx context.Context, engineerID int64, from, to time.Time) ([]models.ActivityEvent, error)
}

// EngineerStore resolves engineer identities.
type EngineerStore interface {
	Create(ctx context.Context, eng *models.Engineer) error
	// GetByID returns (nil, nil) when the id is unknown.
	GetByID(ctx context.Context, id int64) (*models.Engineer, error)
	List(ctx context.Context) ([]*models.Engineer, error)
}

// Geocoder resolves coordinates to addresses. Failures are tolerated by the
// engine, never fatal to a run.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (geocoder.Place, error)
}

// Broadcaster is the fire-and-forget fan-out sink.
type Broadcaster interface {
	Publish(topic string, data interface{})
}
