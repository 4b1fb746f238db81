package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ingrescan-health-server/internal/database"
	"github.com/ingrescan-health-server/internal/domain"
)

// generateTestPassword creates a secure random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}

	migrationRunner, err := database.NewMigrationRunner(config.URL(), logger)
	if err != nil {
		t.Fatalf("Failed to create migration runner: %v", err)
	}

	if err := migrationRunner.Up(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

func TestDescriptionRepository_UpsertAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDescriptionRepository(db.Pool, quietLogger())
	ctx := context.Background()

	err := repo.Upsert(ctx, &DescriptionEntry{
		Name:        "  Xanthan Gum ",
		Description: "A polysaccharide thickener.",
		Source:      "wikipedia",
	})
	if err != nil {
		t.Fatalf("Failed to upsert description: %v", err)
	}

	entry, err := repo.Get(ctx, "xanthan gum")
	if err != nil {
		t.Fatalf("Failed to get description: %v", err)
	}
	if entry.Description != "A polysaccharide thickener." {
		t.Errorf("Expected stored description, got %q", entry.Description)
	}
	if entry.Source != "wikipedia" {
		t.Errorf("Expected source wikipedia, got %q", entry.Source)
	}

	err = repo.Upsert(ctx, &DescriptionEntry{Name: "xanthan gum", Description: "Updated.", Source: "openfoodfacts"})
	if err != nil {
		t.Fatalf("Failed to update description: %v", err)
	}
	entry, err = repo.Get(ctx, "Xanthan Gum")
	if err != nil {
		t.Fatalf("Failed to get updated description: %v", err)
	}
	if entry.Description != "Updated." {
		t.Errorf("Expected updated description, got %q", entry.Description)
	}
}

func TestDescriptionRepository_GetMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDescriptionRepository(db.Pool, quietLogger())

	_, err := repo.Get(context.Background(), "nothing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDescriptionRepository_ListAndPrune(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDescriptionRepository(db.Pool, quietLogger())
	ctx := context.Background()
	old := time.Now().Add(-30 * 24 * time.Hour).UTC()

	for _, e := range []*DescriptionEntry{
		{Name: "agar", Description: "Gelling agent.", FetchedAt: old},
		{Name: "pectin", Description: "Fruit fiber."},
		{Name: "carrageenan", Description: "Seaweed extract.", FetchedAt: old},
	} {
		if err := repo.Upsert(ctx, e); err != nil {
			t.Fatalf("Failed to upsert %s: %v", e.Name, err)
		}
	}

	entries, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list descriptions: %v", err)
	}
	if len(entries) != 3 || entries[0].Name != "agar" {
		t.Fatalf("Expected 3 entries ordered by name, got %+v", entries)
	}

	removed, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 stale rows removed, got %d", removed)
	}
}
