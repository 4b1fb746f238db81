package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ingrescan-health-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite catalog store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed during an import
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanProduct scans a row into a Product.
func scanProduct(s scanner) (*Product, error) {
	p := &Product{}
	var allergens, nutrients string

	err := s.Scan(
		&p.ID, &p.Barcode, &p.Name, &p.Brand, &p.IngredientsText,
		&allergens, &nutrients, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Allergens = splitAllergens(allergens)
	if nutrients != "" {
		if err := json.Unmarshal([]byte(nutrients), &p.Nutrients); err != nil {
			return nil, fmt.Errorf("failed to decode nutrients for %s: %w", p.Barcode, err)
		}
	}
	return p, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		barcode TEXT NOT NULL UNIQUE,
		product_name TEXT NOT NULL DEFAULT '',
		brand TEXT NOT NULL DEFAULT '',
		ingredients_text TEXT NOT NULL DEFAULT '',
		allergens TEXT NOT NULL DEFAULT '',
		nutrients TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ingredients (
		name TEXT PRIMARY KEY,
		canonical_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		safety TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_products_name ON products(product_name);
	`

	_, err := db.Exec(schema)
	return err
}

const productColumns = `id, barcode, product_name, brand, ingredients_text, allergens, nutrients, created_at, updated_at`

// UpsertProduct stores a product, replacing any record with the same barcode.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, product *Product) error {
	if product.Barcode == "" {
		return fmt.Errorf("barcode is required")
	}
	now := time.Now().UTC()

	nutrients, err := json.Marshal(product.Nutrients)
	if err != nil {
		return fmt.Errorf("failed to encode nutrients: %w", err)
	}

	existing, err := s.GetProduct(ctx, product.Barcode)
	if err != nil {
		return err
	}
	if existing != nil {
		product.ID = existing.ID
		product.CreatedAt = existing.CreatedAt
	} else {
		if product.ID == "" {
			product.ID = uuid.NewString()
		}
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(barcode) DO UPDATE SET
			product_name = excluded.product_name,
			brand = excluded.brand,
			ingredients_text = excluded.ingredients_text,
			allergens = excluded.allergens,
			nutrients = excluded.nutrients,
			updated_at = excluded.updated_at`,
		product.ID, product.Barcode, product.Name, product.Brand, product.IngredientsText,
		joinAllergens(product.Allergens), string(nutrients), product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

// GetProduct returns (nil, nil) when the barcode is unknown.
func (s *SQLiteStore) GetProduct(ctx context.Context, barcode string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE barcode = ?", barcode)

	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// ListProducts returns products ordered by barcode with pagination.
func (s *SQLiteStore) ListProducts(ctx context.Context, limit, offset int) ([]*Product, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products ORDER BY barcode LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var result []*Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, product)
	}
	return result, rows.Err()
}

// CountProducts returns the number of stored products.
func (s *SQLiteStore) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// DeleteProduct removes a product by barcode.
func (s *SQLiteStore) DeleteProduct(ctx context.Context, barcode string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE barcode = ?", barcode); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// UpsertIngredient stores an ingredient reference record keyed by name.
func (s *SQLiteStore) UpsertIngredient(ctx context.Context, ingredient *domain.IngredientRecord) error {
	key := ingredientKey(ingredient.Name)
	if key == "" {
		return fmt.Errorf("ingredient name is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingredients (name, canonical_name, description, safety, category)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			canonical_name = excluded.canonical_name,
			description = excluded.description,
			safety = excluded.safety,
			category = excluded.category`,
		key, ingredient.CanonicalName, ingredient.Description, string(ingredient.Safety), ingredient.Category,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert ingredient: %w", err)
	}
	return nil
}

// GetIngredient returns domain.ErrNotFound when the name is unknown.
func (s *SQLiteStore) GetIngredient(ctx context.Context, name string) (*domain.IngredientRecord, error) {
	rec := &domain.IngredientRecord{}
	var safety string

	err := s.db.QueryRowContext(ctx,
		"SELECT name, canonical_name, description, safety, category FROM ingredients WHERE name = ?",
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
func (s *SQLiteStore) ListIngredientNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM ingredients ORDER BY name")
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
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.ListProducts(ctx, maxExportLimit, 0)
	if err != nil {
		return err
	}
	return writeExport(writer, all)
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func writeExport(writer io.Writer, products []*Product) error {
	if products == nil {
		products = []*Product{}
	}
	export := &CatalogExport{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(products),
		Products:   products,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
