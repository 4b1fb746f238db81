package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/domain"
)

// ImportResult summarizes one CSV import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// productTextColumns are the non-numeric product CSV headers. Every other
// column is read as a nutrient through domain.CanonicalNutrientKey.
var productTextColumns = map[string]bool{
	"barcode":          true,
	"code":             true,
	"product_name":     true,
	"brand":            true,
	"brands":           true,
	"ingredients_text": true,
	"allergens":        true,
}

// Importer loads products and ingredient reference rows from CSV into a Store.
type Importer struct {
	store  Store
	logger *logrus.Logger
}

// NewImporter creates an importer over store.
func NewImporter(store Store, logger *logrus.Logger) *Importer {
	return &Importer{store: store, logger: logger}
}

// ImportProducts reads a header-mapped product CSV. Rows without a barcode
// are skipped; unknown columns are ignored; existing barcodes are replaced.
func (i *Importer) ImportProducts(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &ImportResult{}, nil
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := headerIndex(header)

	result := &ImportResult{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		product := productFromRow(columns, record)
		if product.Barcode == "" {
			result.Skipped++
			continue
		}
		if err := i.store.UpsertProduct(ctx, product); err != nil {
			return result, fmt.Errorf("line %d: %w", line, err)
		}
		result.Imported++
	}

	i.logger.WithFields(logrus.Fields{
		"imported": result.Imported,
		"skipped":  result.Skipped,
	}).Info("Catalog products imported")
	return result, nil
}

// ImportIngredients reads ingredient reference rows with the columns
// name, canonical_name, description, safety and category.
func (i *Importer) ImportIngredients(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &ImportResult{}, nil
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := headerIndex(header)

	result := &ImportResult{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		rec := &domain.IngredientRecord{
			Name:          field(columns, record, "name"),
			CanonicalName: field(columns, record, "canonical_name"),
			Description:   field(columns, record, "description"),
			Safety:        domain.SafetyTag(strings.ToLower(field(columns, record, "safety"))),
			Category:      field(columns, record, "category"),
		}
		if rec.Name == "" {
			result.Skipped++
			continue
		}
		if rec.CanonicalName == "" {
			rec.CanonicalName = rec.Name
		}
		if rec.Safety != "" && !rec.Safety.IsValid() {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v: %s", line, domain.ErrInvalidSafetyTag, rec.Safety))
			continue
		}
		if err := i.store.UpsertIngredient(ctx, rec); err != nil {
			return result, fmt.Errorf("line %d: %w", line, err)
		}
		result.Imported++
	}

	i.logger.WithFields(logrus.Fields{
		"imported": result.Imported,
		"skipped":  result.Skipped,
	}).Info("Catalog ingredients imported")
	return result, nil
}

func headerIndex(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for idx, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := columns[key]; !seen {
			columns[key] = idx
		}
	}
	return columns
}

func field(columns map[string]int, record []string, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func productFromRow(columns map[string]int, record []string) *Product {
	barcode := field(columns, record, "barcode")
	if barcode == "" {
		barcode = field(columns, record, "code")
	}
	brand := field(columns, record, "brand")
	if brand == "" {
		brand = field(columns, record, "brands")
	}

	p := &Product{
		Barcode:         barcode,
		Name:            field(columns, record, "product_name"),
		Brand:           brand,
		IngredientsText: field(columns, record, "ingredients_text"),
		Allergens:       splitAllergens(field(columns, record, "allergens")),
	}

	for name, idx := range columns {
		if productTextColumns[name] || idx >= len(record) {
			continue
		}
		raw := strings.TrimSpace(record[idx])
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			continue
		}
		p.Nutrients.Set(name, value)
	}
	return p
}
