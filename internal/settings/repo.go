package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository persists the singleton settings row in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the settings row, or ErrNotFound.
func (r *Repository) Get(ctx context.Context) (Settings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, school_name, latitude, longitude, allowed_radius_meters, max_accuracy_meters,
		       start_time, end_time, created_at, updated_at
		FROM school_settings
		ORDER BY created_at
		LIMIT 1
	`)
	var (
		s          Settings
		start, end sql.NullString
	)
	err := row.Scan(&s.ID, &s.SchoolName, &s.Latitude, &s.Longitude, &s.AllowedRadiusMeters,
		&s.MaxAccuracyMeters, &start, &end, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Settings{}, ErrNotFound
		}
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	s.StartTime = start.String
	s.EndTime = end.String
	return s, nil
}

// Upsert updates the singleton row when present and inserts it otherwise.
// The singleton column carries a unique constraint so concurrent first saves
// collapse into one row.
func (r *Repository) Upsert(ctx context.Context, s Settings) (Settings, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO school_settings (singleton, school_name, latitude, longitude, allowed_radius_meters,
		                             max_accuracy_meters, start_time, end_time)
		VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (singleton) DO UPDATE SET
			school_name = EXCLUDED.school_name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			allowed_radius_meters = EXCLUDED.allowed_radius_meters,
			max_accuracy_meters = EXCLUDED.max_accuracy_meters,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, s.SchoolName, s.Latitude, s.Longitude, s.AllowedRadiusMeters, s.MaxAccuracyMeters,
		nullString(s.StartTime), nullString(s.EndTime))
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return s, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
