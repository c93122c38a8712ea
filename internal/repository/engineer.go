package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fieldops/fieldtrace/internal/models"
)

// EngineerRepository stores engineers.
type EngineerRepository struct {
	db *DB
}

// NewEngineerRepository creates the repository.
func NewEngineerRepository(db *DB) *EngineerRepository {
	return &EngineerRepository{db: db}
}

// Create inserts an engineer and sets its ID.
func (r *EngineerRepository) Create(ctx context.Context, eng *models.Engineer) error {
	query := `
		INSERT INTO engineers (name, phone, timezone)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.Pool.QueryRow(ctx, query, eng.Name, eng.Phone, eng.Timezone).
		Scan(&eng.ID, &eng.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert engineer: %w", err)
	}
	return nil
}

// GetByID returns an engineer, or (nil, nil) when the id is unknown.
func (r *EngineerRepository) GetByID(ctx context.Context, id int64) (*models.Engineer, error) {
	query := `
		SELECT id, name, COALESCE(phone, ''), timezone, created_at
		FROM engineers WHERE id = $1
	`
	eng := &models.Engineer{}
	err := r.db.Pool.QueryRow(ctx, query, id).
		Scan(&eng.ID, &eng.Name, &eng.Phone, &eng.Timezone, &eng.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get engineer by id: %w", err)
	}
	return eng, nil
}

// List returns all engineers ordered by name.
func (r *EngineerRepository) List(ctx context.Context) ([]*models.Engineer, error) {
	query := `
		SELECT id, name, COALESCE(phone, ''), timezone, created_at
		FROM engineers ORDER BY name
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list engineers: %w", err)
	}
	defer rows.Close()

	var engineers []*models.Engineer
	for rows.Next() {
		eng := &models.Engineer{}
		if err := rows.Scan(&eng.ID, &eng.Name, &eng.Phone, &eng.Timezone, &eng.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan engineer: %w", err)
		}
		engineers = append(engineers, eng)
	}

	return engineers, nil
}
