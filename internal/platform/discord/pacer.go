package discord

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Retry configuration for transient REST failures.
const (
	retryMaxElapsed = 30 * time.Second
	retryMaxTries   = 4
)

// Pacer spaces out history page fetches and role/message mutations and
// retries calls that fail transiently.
type Pacer struct {
	pages     *rate.Limiter
	mutations *rate.Limiter

	// NewBackOff returns a fresh policy per call. BackOff values are stateful.
	NewBackOff func() backoff.BackOff
}

// NewPacer returns a pacer allowing one page fetch per pageInterval and one
// mutation per mutationInterval. A zero interval disables that limit.
func NewPacer(pageInterval, mutationInterval time.Duration) *Pacer {
	return &Pacer{
		pages:      rate.NewLimiter(every(pageInterval), 1),
		mutations:  rate.NewLimiter(every(mutationInterval), 1),
		NewBackOff: defaultBackOff,
	}
}

func every(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return backoff.WithMaxRetries(bo, retryMaxTries)
}

// Page waits for the page limiter, then runs op with retry.
func (p *Pacer) Page(ctx context.Context, op func() error) error {
	if err := p.pages.Wait(ctx); err != nil {
		return err
	}
	return p.Call(ctx, op)
}

// Mutate waits for the mutation limiter, then runs op with retry.
func (p *Pacer) Mutate(ctx context.Context, op func() error) error {
	if err := p.mutations.Wait(ctx); err != nil {
		return err
	}
	return p.Call(ctx, op)
}

// Call runs op, retrying transient failures.
func (p *Pacer) Call(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && isRetryable(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(p.NewBackOff(), ctx))
}

// isRetryable reports whether err is a rate limit, a server-side failure or
// a network error.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var re *discordgo.RESTError
	if errors.As(err, &re) {
		if re.Response == nil {
			return false
		}
		code := re.Response.StatusCode
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	var ne net.Error
	return errors.As(err, &ne)
}
