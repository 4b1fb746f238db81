package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/rules"
)

// MockProductSource is a mock implementation of domain.ProductSource
type MockProductSource struct {
	mock.Mock
}

func (m *MockProductSource) FetchProduct(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	args := m.Called(ctx, barcode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductRecord), args.Error(1)
}

// MockDescriptionLookup is a mock implementation of domain.DescriptionLookup
type MockDescriptionLookup struct {
	mock.Mock
}

func (m *MockDescriptionLookup) LookupDescription(ctx context.Context, name string) (string, bool) {
	args := m.Called(ctx, name)
	return args.String(0), args.Bool(1)
}

// MockNameResolver is a mock implementation of domain.NameResolver
type MockNameResolver struct {
	mock.Mock
}

func (m *MockNameResolver) ResolveName(ctx context.Context, token string) (*domain.IngredientRecord, bool) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*domain.IngredientRecord), args.Bool(1)
}

// MockIngredientCatalog is a mock implementation of domain.IngredientCatalog
type MockIngredientCatalog struct {
	mock.Mock
}

func (m *MockIngredientCatalog) ListIngredientNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockIngredientCatalog) GetIngredient(ctx context.Context, name string) (*domain.IngredientRecord, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngredientRecord), args.Error(1)
}

func testTables() *rules.Tables {
	return rules.MustDefault()
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}
