package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"

	"github.com/sony/gobreaker"
)

// BreakerParams configures the circuit breaker wrapped around a client.
type BreakerParams struct {
	MaxRequests      uint32        // requests allowed through while half-open
	Interval         time.Duration // window after which closed-state counts reset
	Timeout          time.Duration // time spent open before probing again
	FailureThreshold float64       // failure ratio that trips the breaker
	MinRequests      uint32        // requests needed before the ratio is evaluated
}

// DefaultBreakerParams returns the settings used when none are configured.
func DefaultBreakerParams() BreakerParams {
	return BreakerParams{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// BreakerClient wraps a GraphAIClient with a circuit breaker. While the
// breaker is open the client reports itself unavailable, so the pipeline
// degrades to its deterministic fallbacks instead of waiting on a backend
// that keeps failing.
type BreakerClient struct {
	client GraphAIClient
	cb     *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps client with a breaker named after the client.
func NewBreakerClient(client GraphAIClient, params BreakerParams) *BreakerClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        client.Name(),
		MaxRequests: params.MaxRequests,
		Interval:    params.Interval,
		Timeout:     params.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < params.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= params.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("[AI] Circuit breaker state changed", "client", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// caller side cancellation says nothing about backend health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
	}
}

// Name returns the wrapped client's name.
func (b *BreakerClient) Name() string {
	return b.client.Name()
}

// IsAvailable is false when the wrapped client is unavailable or the breaker is open.
func (b *BreakerClient) IsAvailable() bool {
	return b.client.IsAvailable() && b.cb.State() != gobreaker.StateOpen
}

// State exposes the breaker state for diagnostics.
func (b *BreakerClient) State() string {
	return b.cb.State().String()
}

// GenerateCompletion forwards to the wrapped client through the breaker.
func (b *BreakerClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...GenerateOption,
) (string, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.client.GenerateCompletion(ctx, prompt, opts...)
	})
	if err != nil {
		return "", mapBreakerErr(err)
	}
	return res.(string), nil
}

// GenerateCompletionWithFormat forwards to the wrapped client through the breaker.
func (b *BreakerClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...GenerateOption,
) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.client.GenerateCompletionWithFormat(ctx, name, description, prompt, out, opts...)
	})
	return mapBreakerErr(err)
}

// ResetMetrics resets the wrapped client's metrics.
func (b *BreakerClient) ResetMetrics() {
	b.client.ResetMetrics()
}

// GetMetrics returns the wrapped client's metrics.
func (b *BreakerClient) GetMetrics() ModelMetrics {
	return b.client.GetMetrics()
}

func mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
