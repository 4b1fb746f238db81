package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingrescan-health-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

const productCSV = `barcode,product_name,brand,ingredients_text,allergens,energy_kcal_100g,sugars_100g,fat_100g,saturated_fat_100g,salt_100g,proteins_100g,fiber_100g,notes
8901063010314,Marie Biscuits,Biscuit Co,"wheat flour, sugar, palm oil, milk solids","en:gluten,en:milk",440,22.5,12,6,0.8,7,2.1,imported
,No Barcode,,water,,,,,,,,,
7622210449283,Cola,Drinks Ltd,"carbonated water, sugar, caffeine",,42,10.6,0,0,0,0,0,
`

func TestImporter_ImportProducts(t *testing.T) {
	store := newTestSQLiteStore(t)
	importer := NewImporter(store, quietLogger())
	ctx := context.Background()

	result, err := importer.ImportProducts(ctx, strings.NewReader(productCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)

	biscuits, err := store.GetProduct(ctx, "8901063010314")
	require.NoError(t, err)
	require.NotNil(t, biscuits)
	assert.Equal(t, "Marie Biscuits", biscuits.Name)
	assert.Equal(t, "Biscuit Co", biscuits.Brand)
	assert.Equal(t, "wheat flour, sugar, palm oil, milk solids", biscuits.IngredientsText)
	assert.Equal(t, []string{"en:gluten", "en:milk"}, biscuits.Allergens)
	assert.Equal(t, domain.NutrientProfile{
		EnergyKcal:   440,
		Sugars:       22.5,
		Fat:          12,
		SaturatedFat: 6,
		Salt:         0.8,
		Proteins:     7,
		Fiber:        2.1,
	}, biscuits.Nutrients)

	// Re-importing replaces rather than duplicates.
	_, err = importer.ImportProducts(ctx, strings.NewReader(productCSV))
	require.NoError(t, err)
	count, err := store.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestImporter_ImportProducts_CodeAndBrandsAliases(t *testing.T) {
	store := newTestSQLiteStore(t)
	importer := NewImporter(store, quietLogger())
	ctx := context.Background()

	data := "code,product_name,brands,sugars_100g\n40084107,Gummy Bears,Haribo,46\n"
	result, err := importer.ImportProducts(ctx, strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	p, err := store.GetProduct(ctx, "40084107")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Haribo", p.Brand)
	assert.Equal(t, 46.0, p.Nutrients.Sugars)
}

func TestImporter_ImportProducts_Empty(t *testing.T) {
	store := newTestSQLiteStore(t)
	importer := NewImporter(store, quietLogger())

	result, err := importer.ImportProducts(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
}

func TestImporter_ImportIngredients(t *testing.T) {
	store := newTestSQLiteStore(t)
	importer := NewImporter(store, quietLogger())
	ctx := context.Background()

	data := `name,canonical_name,description,safety,category
turmeric,Turmeric,A yellow spice.,safe,spice
sodium benzoate,,A preservative.,moderate,preservative
mystery,,,dangerous,
,Nameless,,,
`
	result, err := importer.ImportIngredients(ctx, strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "invalid safety tag")

	rec, err := store.GetIngredient(ctx, "sodium benzoate")
	require.NoError(t, err)
	assert.Equal(t, "sodium benzoate", rec.CanonicalName)
	assert.Equal(t, domain.MODERATE, rec.Safety)
}
