package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ingrescan-health-server/internal/domain"
)

// ErrServiceUnavailable is returned while a breaker is open.
var ErrServiceUnavailable = errors.New("service unavailable (circuit breaker open)")

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `json:"max_requests"`
	Interval     time.Duration `json:"interval"`
	Timeout      time.Duration `json:"timeout"`
	MinRequests  uint32        `json:"min_requests"`
	FailureRatio float64       `json:"failure_ratio"`
}

// DefaultCircuitBreakerConfig trips after 3 requests with a 60% failure ratio.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:  5,
		Interval:     30 * time.Second,
		Timeout:      60 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// NewCircuitBreaker builds a named breaker that logs its state changes.
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	defaults := DefaultCircuitBreakerConfig()
	if config.MaxRequests == 0 {
		config.MaxRequests = defaults.MaxRequests
	}
	if config.Interval == 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MinRequests == 0 {
		config.MinRequests = defaults.MinRequests
	}
	if config.FailureRatio == 0 {
		config.FailureRatio = defaults.FailureRatio
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= config.MinRequests && failureRatio >= config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// ResilientProductSource guards a ProductSource with a circuit breaker.
// A not-found answer counts as a success.
type ResilientProductSource struct {
	source  domain.ProductSource
	breaker *gobreaker.CircuitBreaker
}

// NewResilientProductSource wraps source with a breaker named name.
func NewResilientProductSource(name string, source domain.ProductSource, config CircuitBreakerConfig, logger *logrus.Logger) *ResilientProductSource {
	return &ResilientProductSource{
		source:  source,
		breaker: NewCircuitBreaker(name, config, logger),
	}
}

// FetchProduct implements domain.ProductSource
func (r *ResilientProductSource) FetchProduct(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.source.FetchProduct(ctx, barcode)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", r.breaker.Name(), ErrServiceUnavailable)
		}
		return nil, fmt.Errorf("%s query failed: %w", r.breaker.Name(), err)
	}

	product, _ := result.(*domain.ProductRecord)
	return product, nil
}

// State returns the breaker state.
func (r *ResilientProductSource) State() gobreaker.State {
	return r.breaker.State()
}

// Counts returns the breaker counters for the current interval.
func (r *ResilientProductSource) Counts() gobreaker.Counts {
	return r.breaker.Counts()
}
