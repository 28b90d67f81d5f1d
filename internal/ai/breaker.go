package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/biasharahub/biashara/internal/models"
	"github.com/sony/gobreaker"
)

// ResilientBackend bounds every call with a timeout and trips a circuit breaker after
// repeated failures so an outage costs callers nothing while the breaker is open.
type ResilientBackend struct {
	inner   Backend
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func NewResilientBackend(inner Backend, timeout time.Duration, logger *slog.Logger) *ResilientBackend {
	settings := gobreaker.Settings{
		Name:        "ai-" + inner.Name(),
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= 5 || (counts.Requests >= 10 && failureRatio >= 0.5)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &ResilientBackend{
		inner:   inner,
		cb:      gobreaker.NewCircuitBreaker(settings),
		timeout: timeout,
	}
}

type completion struct {
	out string
	err error
}

func (b *ResilientBackend) Name() string { return b.inner.Name() }

func (b *ResilientBackend) State() gobreaker.State { return b.cb.State() }

func (b *ResilientBackend) Complete(ctx context.Context, p Prompt) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	res, err := b.cb.Execute(func() (interface{}, error) {
		// the backend may ignore ctx; the caller's budget must not depend on it
		ch := make(chan completion, 1)
		go func() {
			out, err := b.inner.Complete(ctx, p)
			ch <- completion{out: out, err: err}
		}()

		select {
		case c := <-ch:
			if c.err != nil {
				return nil, c.err
			}
			if strings.TrimSpace(c.out) == "" {
				return nil, ErrEmptyCompletion
			}
			return c.out, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", b.inner.Name(), ctx.Err())
		}
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%s: %w: %v", b.inner.Name(), models.ErrServiceUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return res.(string), nil
}
