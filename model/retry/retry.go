// Package retry decorates a model.Provider with exponential backoff for
// rate limited and transient failures.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/model"
)

// Options configures the retry decorator.
type Options struct {
	MaxRetries      uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          logging.Logger
}

// Provider retries the wrapped provider's temporary failures.
type Provider struct {
	next model.Provider
	opts Options
}

// Wrap decorates next. MaxRetries of zero disables retrying.
func Wrap(next model.Provider, optFns ...func(o *Options)) *Provider {
	opts := Options{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{next: next, opts: opts}
}

// Complete implements model.Provider.
func (p *Provider) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	attempt := 0

	op := func() (*model.Response, error) {
		attempt++

		resp, err := p.next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		if !Temporary(err) {
			return nil, backoff.Permanent(err)
		}

		p.opts.Logger.Warn("provider.retry",
			"provider", p.next.Info().Provider,
			"attempt", attempt,
			"error", err.Error(),
		)

		return nil, err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.opts.InitialInterval
	eb.MaxInterval = p.opts.MaxInterval

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(p.opts.MaxRetries+1),
	)
}

// Info implements model.Provider.
func (p *Provider) Info() model.Info { return p.next.Info() }

// Temporary reports whether err is worth retrying.
func Temporary(err error) bool {
	var se *model.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return false
}
