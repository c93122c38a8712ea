package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fieldops/fieldtrace/internal/models"
)

// SampleRepository stores raw location samples (the ingest buffer).
type SampleRepository struct {
	db *DB
}

// NewSampleRepository creates the repository.
func NewSampleRepository(db *DB) *SampleRepository {
	return &SampleRepository{db: db}
}

// InsertBatch appends a batch of samples.
func (r *SampleRepository) InsertBatch(ctx context.Context, samples []*models.LocationSample) error {
	batch := &pgx.Batch{}
	query := `
		INSERT INTO location_samples (engineer_id, latitude, longitude, speed, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, s := range samples {
		batch.Queue(query, s.EngineerID, s.Latitude, s.Longitude, s.Speed, s.RecordedAt)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range samples {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}
	return nil
}

// ListUnprocessed returns an engineer's unprocessed samples in ascending
// timestamp order.
func (r *SampleRepository) ListUnprocessed(ctx context.Context, engineerID int64) ([]models.LocationSample, error) {
	query := `
		SELECT id, engineer_id, latitude, longitude, speed, recorded_at, processed
		FROM location_samples
		WHERE engineer_id = $1 AND NOT processed
		ORDER BY recorded_at
	`
	rows, err := r.db.Pool.Query(ctx, query, engineerID)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed samples: %w", err)
	}
	defer rows.Close()

	var samples []models.LocationSample
	for rows.Next() {
		var s models.LocationSample
		err := rows.Scan(&s.ID, &s.EngineerID, &s.Latitude, &s.Longitude, &s.Speed, &s.RecordedAt, &s.Processed)
		if err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, nil
}

// MarkProcessed flips the processed flag for the given sample ids.
func (r *SampleRepository) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE location_samples SET processed = TRUE WHERE id = ANY($1)`
	if _, err := r.db.Pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("mark samples processed: %w", err)
	}
	return nil
}

// EngineersWithUnprocessed lists the engineers that have a pending backlog.
func (r *SampleRepository) EngineersWithUnprocessed(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT engineer_id FROM location_samples WHERE NOT processed`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list engineers with unprocessed samples: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan engineer id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
