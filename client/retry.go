package client

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/korylprince/streamchat/api"
)

// Retry defaults
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// RetryOptions configures WithRetry. Zero values select the defaults.
type RetryOptions struct {
	MaxRetries  int
	BaseDelay   time.Duration
	ShouldRetry func(err error) bool
}

// ShouldRetry reports whether err is a transient failure: a server error status or a network error
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return true
		}
		if apiErr.Status != 0 {
			return false
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// WithRetry calls fn until it succeeds, ShouldRetry rejects the error, or MaxRetries retries
// have been made. Delays double from BaseDelay.
func WithRetry[T any](ctx context.Context, fn func() (T, error), opts RetryOptions) (T, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.ShouldRetry == nil {
		opts.ShouldRetry = ShouldRetry
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = opts.BaseDelay << opts.MaxRetries

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !opts.ShouldRetry(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(opts.MaxRetries+1)))
}
