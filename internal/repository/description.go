package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/domain"
)

// DescriptionEntry is one persisted ingredient description.
type DescriptionEntry struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// DescriptionRepository persists ingredient descriptions fetched from the
// text-lookup services so they survive restarts.
type DescriptionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewDescriptionRepository creates a new description repository
func NewDescriptionRepository(db *pgxpool.Pool, logger *logrus.Logger) *DescriptionRepository {
	return &DescriptionRepository{
		db:  db,
		log: logger,
	}
}

func descriptionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Upsert stores or replaces the description for an ingredient name.
func (r *DescriptionRepository) Upsert(ctx context.Context, entry *DescriptionEntry) error {
	key := descriptionKey(entry.Name)
	if key == "" {
		return fmt.Errorf("ingredient name is required")
	}
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ingredient_descriptions (name, description, source, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			source = EXCLUDED.source,
			fetched_at = EXCLUDED.fetched_at`

	if _, err := r.db.Exec(ctx, query, key, entry.Description, entry.Source, entry.FetchedAt); err != nil {
		r.log.WithFields(logrus.Fields{
			"ingredient": key,
			"error":      err,
		}).Error("Failed to store ingredient description")
		return fmt.Errorf("storing ingredient description: %w", err)
	}
	return nil
}

// Get returns the stored description, wrapping domain.ErrNotFound on a miss.
func (r *DescriptionRepository) Get(ctx context.Context, name string) (*DescriptionEntry, error) {
	query := `
		SELECT name, description, source, fetched_at
		FROM ingredient_descriptions
		WHERE name = $1`

	var entry DescriptionEntry
	err := r.db.QueryRow(ctx, query, descriptionKey(name)).Scan(
		&entry.Name,
		&entry.Description,
		&entry.Source,
		&entry.FetchedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("description for %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting ingredient description: %w", err)
	}
	return &entry, nil
}

// List returns stored descriptions ordered by name with pagination.
func (r *DescriptionRepository) List(ctx context.Context, limit, offset int) ([]*DescriptionEntry, error) {
	query := `
		SELECT name, description, source, fetched_at
		FROM ingredient_descriptions
		ORDER BY name
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing ingredient descriptions: %w", err)
	}
	defer rows.Close()

	var entries []*DescriptionEntry
	for rows.Next() {
		var entry DescriptionEntry
		if err := rows.Scan(&entry.Name, &entry.Description, &entry.Source, &entry.FetchedAt); err != nil {
			return nil, fmt.Errorf("scanning description row: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating description rows: %w", err)
	}
	return entries, nil
}

// DeleteOlderThan removes descriptions fetched before cutoff and returns the
// number of rows removed.
func (r *DescriptionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM ingredient_descriptions WHERE fetched_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning ingredient descriptions: %w", err)
	}

	removed := tag.RowsAffected()
	if removed > 0 {
		r.log.WithFields(logrus.Fields{
			"removed": removed,
			"cutoff":  cutoff,
		}).Info("Pruned stale ingredient descriptions")
	}
	return removed, nil
}
