package tiebreak

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/graphfold/graphfold/pkg/alert"
	"github.com/graphfold/graphfold/pkg/types"
)

// DefaultTripRatio is the failure ratio at which the circuit opens.
const DefaultTripRatio = 0.6

// breakerMinRequests is the sample size required before the ratio counts.
const breakerMinRequests = 3

// BreakerConfig tunes the circuit breaker around a tiebreak client. Zero
// values take gobreaker's defaults except TripRatio.
type BreakerConfig struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	TripRatio   float64
}

// CircuitBreakerClient wraps a Client with circuit breaking. While the
// circuit is open every call fails fast, which downstream turns into human
// review instead of a batch stalled on a dead judge.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewCircuitBreakerClient wraps client. State changes are logged; the open
// transition also goes to the alerter when one is configured.
func NewCircuitBreakerClient(client Client, cfg BreakerConfig, alerter alert.Alerter, logger *slog.Logger) *CircuitBreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TripRatio <= 0 {
		cfg.TripRatio = DefaultTripRatio
	}

	st := gobreaker.Settings{
		Name:        "tiebreak",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= breakerMinRequests && failureRatio >= cfg.TripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("tiebreak circuit state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
			if to == gobreaker.StateOpen && alerter != nil {
				msg := fmt.Sprintf("Circuit breaker %q moved from %s to %s. Ambiguous entities fall back to human review until it recovers.",
					name, from, to)
				_ = alerter.Alert("Tiebreak circuit breaker open", msg)
			}
		},
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
		logger: logger,
	}
}

// Tiebreak implements Client. While the circuit is open it returns
// gobreaker.ErrOpenState without touching the wrapped client.
func (c *CircuitBreakerClient) Tiebreak(ctx context.Context, entityType string, entity types.Properties, candidates []*types.Candidate) (Verdict, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Tiebreak(ctx, entityType, entity, candidates)
	})
	if err != nil {
		return Verdict{}, err
	}
	return out.(Verdict), nil
}

// Close implements Client.
func (c *CircuitBreakerClient) Close() error {
	return c.client.Close()
}
