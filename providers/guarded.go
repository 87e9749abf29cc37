package providers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"propsync/config"
	"propsync/models"
)

const (
	defaultRateLimit   = 500 * time.Millisecond
	defaultMaxFailures = 5
	defaultOpenTimeout = time.Minute
)

// Guarded rate-limits a fetcher and trips a circuit breaker after repeated
// upstream failures. Not-found answers count as healthy responses.
type Guarded struct {
	inner   Fetcher
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

type fetchResult struct {
	tree models.Tree
	err  error
}

func NewGuarded(inner Fetcher, cfg *config.ProviderConfig) *Guarded {
	every := defaultRateLimit
	burst := 1
	maxFailures := defaultMaxFailures
	openTimeout := defaultOpenTimeout
	if cfg != nil {
		if cfg.RateLimitMS > 0 {
			every = time.Duration(cfg.RateLimitMS) * time.Millisecond
		}
		if cfg.Burst > 0 {
			burst = cfg.Burst
		}
		if cfg.Breaker.MaxFailures > 0 {
			maxFailures = cfg.Breaker.MaxFailures
		}
		if cfg.Breaker.OpenSeconds > 0 {
			openTimeout = time.Duration(cfg.Breaker.OpenSeconds) * time.Second
		}
	}

	return &Guarded{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(every), burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(inner.Provider()),
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(maxFailures)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Printf("Provider %s circuit breaker: %s -> %s", name, from.String(), to.String())
			},
		}),
	}
}

func (g *Guarded) Provider() models.Provider {
	return g.inner.Provider()
}

func (g *Guarded) Fetch(ctx context.Context, credential, externalID string) (models.Tree, error) {
	p := g.inner.Provider()
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, unavailable(p, 0, "rate limit wait", err)
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		tree, err := g.inner.Fetch(ctx, credential, externalID)
		if err != nil && (errors.Is(err, ErrNotFound) || ctx.Err() == context.Canceled) {
			return fetchResult{err: err}, nil
		}
		return fetchResult{tree: tree, err: err}, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, unavailable(p, 0, "circuit open", err)
	}
	if err != nil {
		return nil, err
	}

	res := out.(fetchResult)
	return res.tree, res.err
}

// State reports the breaker state, for diagnostics.
func (g *Guarded) State() gobreaker.State {
	return g.breaker.State()
}
