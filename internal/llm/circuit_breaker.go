package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while a provider is failing and calls to it are
// short-circuited.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a provider breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit. Default: 3
	MaxFailures uint32

	// Timeout is how long the circuit stays open before trial calls are let
	// through. Default: 30s
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of trial calls that must succeed
	// to close the circuit. Default: 2
	HalfOpenMaxSuccesses uint32

	// Name is the provider, used in errors and logs. Default: "llm"
	Name string

	Logger *zap.Logger
}

// BreakerCounts is a snapshot of the calls seen since the circuit last
// changed state.
type BreakerCounts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker stops calling an AI provider that keeps failing, so a dead
// endpoint costs one fast error instead of a full request timeout.
//
// A call cancelled by its caller is not held against the provider.
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a breaker for the named provider with the
// default thresholds.
func NewCircuitBreaker(name string, logger *zap.Logger) *CircuitBreaker {
	return NewCircuitBreakerWithConfig(CircuitBreakerConfig{Name: name, Logger: logger})
}

// NewCircuitBreakerWithConfig creates a breaker. Zero fields take their
// defaults.
func NewCircuitBreakerWithConfig(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HalfOpenMaxSuccesses == 0 {
		config.HalfOpenMaxSuccesses = 2
	}
	if config.Name == "" {
		config.Name = "llm"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CircuitBreaker{
		name: config.Name,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        config.Name,
			MaxRequests: config.HalfOpenMaxSuccesses,
			Timeout:     config.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.MaxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("AI provider circuit state changed",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

// State returns "closed", "open" or "half-open".
func (cb *CircuitBreaker) State() string {
	return cb.breaker.State().String()
}

// Counts returns the calls seen in the current state.
func (cb *CircuitBreaker) Counts() BreakerCounts {
	c := cb.breaker.Counts()
	return BreakerCounts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

// guard runs fn through cb. An open circuit yields an error naming the
// provider that wraps ErrCircuitOpen; a context that is already done
// returns its error without calling fn.
func guard[T any](ctx context.Context, cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%s circuit breaker open: %w", cb.name, ErrCircuitOpen)
	}
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}
