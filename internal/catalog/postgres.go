package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ingrescan-health-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL catalog store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL catalog store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func scanPGProduct(s scanner) (*Product, error) {
	p := &Product{}
	var nutrients []byte

	err := s.Scan(
		&p.ID, &p.Barcode, &p.Name, &p.Brand, &p.IngredientsText,
		pq.Array(&p.Allergens), &nutrients, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(nutrients) > 0 {
		if err := json.Unmarshal(nutrients, &p.Nutrients); err != nil {
			return nil, fmt.Errorf("failed to decode nutrients for %s: %w", p.Barcode, err)
		}
	}
	return p, nil
}

// UpsertProduct stores a product, replacing any record with the same barcode.
func (s *PostgresStore) UpsertProduct(ctx context.Context, product *Product) error {
	if product.Barcode == "" {
		return fmt.Errorf("barcode is required")
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	nutrients, err := json.Marshal(product.Nutrients)
	if err != nil {
		return fmt.Errorf("failed to encode nutrients: %w", err)
	}

	query := `
		INSERT INTO catalog_products (
			id, barcode, product_name, brand, ingredients_text,
			allergens, nutrients, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (barcode) DO UPDATE SET
			product_name = EXCLUDED.product_name,
			brand = EXCLUDED.brand,
			ingredients_text = EXCLUDED.ingredients_text,
			allergens = EXCLUDED.allergens,
			nutrients = EXCLUDED.nutrients,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	allergens := product.Allergens
	if allergens == nil {
		allergens = []string{}
	}

	err = s.db.QueryRowContext(ctx, query,
		product.ID,
		product.Barcode,
		product.Name,
		product.Brand,
		product.IngredientsText,
		pq.Array(allergens),
		string(nutrients),
		now,
		now,
	).Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	product.UpdatedAt = now
	return nil
}

const pgProductSelect = `
	SELECT id, barcode, product_name, brand, ingredients_text,
		allergens, nutrients, created_at, updated_at
	FROM catalog_products
`

// GetProduct returns (nil, nil) when the barcode is unknown.
func (s *PostgresStore) GetProduct(ctx context.Context, barcode string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, pgProductSelect+"WHERE barcode = $1", barcode)

	product, err := scanPGProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// ListProducts returns products ordered by barcode with pagination.
func (s *PostgresStore) ListProducts(ctx context.Context, limit, offset int) ([]*Product, error) {
	rows, err := s.db.QueryContext(ctx, pgProductSelect+"ORDER BY barcode LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var result []*Product
	for rows.Next() {
		product, err := scanPGProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, product)
	}
	return result, rows.Err()
}

// CountProducts returns the number of stored products.
func (s *PostgresStore) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM catalog_products").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// DeleteProduct removes a product by barcode.
func (s *PostgresStore) DeleteProduct(ctx context.Context, barcode string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM catalog_products WHERE barcode = $1", barcode); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// UpsertIngredient stores an ingredient reference record keyed by name.
func (s *PostgresStore) UpsertIngredient(ctx context.Context, ingredient *domain.IngredientRecord) error {
	key := ingredientKey(ingredient.Name)
	if key == "" {
		return fmt.Errorf("ingredient name is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_ingredients (name, canonical_name, description, safety, category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			canonical_name = EXCLUDED.canonical_name,
			description = EXCLUDED.description,
			safety = EXCLUDED.safety,
			category = EXCLUDED.category`,
		key, ingredient.CanonicalName, ingredient.Description, string(ingredient.Safety), ingredient.Category,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert ingredient: %w", err)
	}
	return nil
}

// GetIngredient returns domain.ErrNotFound when the name is unknown.
func (s *PostgresStore) GetIngredient(ctx context.Context, name string) (*domain.IngredientRecord, error) {
	rec := &domain.IngredientRecord{}
	var safety string

	err := s.db.QueryRowContext(ctx,
		"SELECT name, canonical_name, description, safety, category FROM catalog_ingredients WHERE name = $1",
		ingredientKey(name),
	).Scan(&rec.Name, &rec.CanonicalName, &rec.Description, &safety, &rec.Category)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredient: %w", err)
	}

	rec.Safety = domain.SafetyTag(safety)
	return rec, nil
}

// ListIngredientNames returns every stored ingredient name.
func (s *PostgresStore) ListIngredientNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM catalog_ingredients ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ExportJSON writes every product to writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.ListProducts(ctx, maxExportLimit, 0)
	if err != nil {
		return err
	}
	return writeExport(writer, all)
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
