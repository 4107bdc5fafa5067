package pregen

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ttsblind/pregen/internal/db"
	"github.com/ttsblind/pregen/internal/synth"
)

// providerState is the run-scoped pacing and failure state for one provider.
type providerState struct {
	cfg     synth.ProviderConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func newProviderState(p db.Provider, breakerThreshold int, log *slog.Logger) *providerState {
	ps := &providerState{
		cfg: synth.ProviderConfig{
			ID:            p.ID,
			Kind:          p.Kind,
			BaseURL:       p.BaseUrl,
			Model:         p.Model,
			MaxTextLength: int(p.MaxTextLength),
		},
	}
	if p.RequestsPerSecond > 0 {
		burst := int(math.Ceil(p.RequestsPerSecond))
		ps.limiter = rate.NewLimiter(rate.Limit(p.RequestsPerSecond), burst)
	}
	if breakerThreshold > 0 {
		threshold := uint32(breakerThreshold)
		ps.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: p.ID,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// Only exhausted retryable failures say anything about the
			// provider's health.
			IsSuccessful: func(err error) bool {
				return err == nil || !synth.IsRetryable(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("provider circuit breaker changed state", "provider", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return ps
}

// guard runs fn through the provider's breaker when one is configured.
func (ps *providerState) guard(fn func() (*synth.Audio, error)) (*synth.Audio, error) {
	if ps.breaker == nil {
		return fn()
	}
	out, err := ps.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &synth.Error{Kind: synth.TransientNetworkError, Provider: ps.cfg.ID, Err: fmt.Errorf("circuit open: %w", err)}
	}
	if err != nil {
		return nil, err
	}
	return out.(*synth.Audio), nil
}
