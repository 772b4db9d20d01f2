package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/clipgraph/pkg/alert"
	"github.com/soundprediction/clipgraph/pkg/config"
)

// CircuitBreakerClient wraps a Client with circuit breaking so a failing
// text-generation provider degrades to ErrUnavailable instead of blocking
// further calls, alerting on trip.
type CircuitBreakerClient struct {
	client  Client
	cb      *gobreaker.CircuitBreaker
	alerter alert.Alerter
	name    string
}

// NewCircuitBreakerClient creates a CircuitBreakerClient wrapping client.
func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, name string) *CircuitBreakerClient {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to != gobreaker.StateOpen || alerter == nil {
				return
			}
			subject, msg := alert.LLMDegraded(name, from, to)
			_ = alerter.Alert(subject, msg)
		},
	}

	return &CircuitBreakerClient{
		client:  client,
		cb:      gobreaker.NewCircuitBreaker(st),
		alerter: alerter,
		name:    name,
	}
}

type generateResult struct {
	text   string
	tokens int
}

// GenerateText implements Client.
func (c *CircuitBreakerClient) GenerateText(ctx context.Context, prompt string) (string, int, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		text, tokens, err := c.client.GenerateText(ctx, prompt)
		if err != nil {
			return generateResult{}, err
		}
		return generateResult{text: text, tokens: tokens}, nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r := result.(generateResult)
	return r.text, r.tokens, nil
}
