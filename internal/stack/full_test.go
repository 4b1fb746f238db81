package stack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingrescan-health-server/internal/config"
	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/service"
)

func TestNewFull_SQLiteWithSeed(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	seed := filepath.Join(dir, "seed.csv")
	require.NoError(t, os.WriteFile(seed, []byte(
		"barcode,product_name,ingredients_text,sugars_100g\n"+
			"4006381333931,Oat Drink,\"water, oats\",4.1\n"), 0o644))

	manager, err := config.NewManager()
	require.NoError(t, err)
	cfg := manager.GetConfig()
	cfg.Catalog.SQLitePath = filepath.Join(dir, "nested", "catalog.db")
	cfg.Catalog.SeedCSV = seed

	ctx := context.Background()
	full, err := NewFull(ctx, cfg, NewLogger("fatal", "json"))
	require.NoError(t, err)
	defer full.Close()

	count, err := full.Catalog.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.Contains(t, full.Checks, "catalog")
	assert.NotContains(t, full.Checks, "postgres")
	assert.NotContains(t, full.Checks, "redis")
	assert.NoError(t, full.Checks["catalog"](ctx))

	assert.Equal(t, domain.SIMPLE_MODE, full.Analyzer.DefaultMode())

	product, err := full.Catalog.GetProduct(ctx, "4006381333931")
	require.NoError(t, err)
	require.NotNil(t, product)
	result := full.Analyzer.Analyze(product.Record(), domain.UserProfile{}, service.AnalyzeOptions{})
	assert.Equal(t, domain.STATUS_FOUND_LOCAL, result.Status)
}

func TestNewFull_MissingSeedFile(t *testing.T) {
	t.Chdir(t.TempDir())

	manager, err := config.NewManager()
	require.NoError(t, err)
	cfg := manager.GetConfig()
	cfg.Catalog.SQLitePath = filepath.Join(t.TempDir(), "catalog.db")
	cfg.Catalog.SeedCSV = filepath.Join(t.TempDir(), "absent.csv")

	_, err = NewFull(context.Background(), cfg, NewLogger("fatal", "json"))
	assert.Error(t, err)
}

func TestFull_CloseOrder(t *testing.T) {
	var order []int
	full := &Full{}
	full.onClose(func() error { order = append(order, 1); return nil })
	full.onClose(func() error { order = append(order, 2); return nil })

	require.NoError(t, full.Close())
	assert.Equal(t, []int{2, 1}, order)
}
