package b2middleware

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/url"
)

// Dispatcher routes outgoing requests through the configured authorizers.
type Dispatcher struct {
	authorizers []Authorizer
	logger      *slog.Logger
}

// Option represents a functional option for configuring the dispatcher
type Option func(*Dispatcher)

// WithAuthorizer appends an authorizer. Authorizers run in the order they
// were added.
func WithAuthorizer(a Authorizer) Option {
	return func(d *Dispatcher) {
		if a != nil {
			d.authorizers = append(d.authorizers, a)
		}
	}
}

// WithLogger sets the logger used for authorization diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a dispatcher. With no authorizers every request passes
// through unchanged.
func New(options ...Option) *Dispatcher {
	d := &Dispatcher{}
	for _, option := range options {
		option(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Authorizers returns the configured authorizers in dispatch order.
func (d *Dispatcher) Authorizers() []Authorizer {
	return append([]Authorizer(nil), d.authorizers...)
}

// ProcessRequest returns req with its URL possibly rewritten and its
// additional headers possibly augmented. Every authorizer is matched against
// the original URL. A failing authorizer contributes nothing; the failure is
// logged and the remaining authorizers still run.
func (d *Dispatcher) ProcessRequest(ctx context.Context, req Request) Request {
	out := req.Clone()

	target, err := url.Parse(req.URL)
	if err != nil {
		d.logger.WarnContext(ctx, "Unparseable request url, passing through", "error", err)
		return out
	}

	for _, a := range d.authorizers {
		if !a.Matches(target) {
			continue
		}
		res, err := a.Authorize(ctx, target)
		if err != nil {
			d.logFailure(ctx, a.Name(), target, err)
			continue
		}
		if res == nil {
			continue
		}
		if res.URL != "" {
			out.URL = res.URL
		}
		maps.Copy(out.AdditionalHeaders, res.Headers)
	}
	return out
}

func (d *Dispatcher) logFailure(ctx context.Context, provider string, target *url.URL, err error) {
	attrs := []any{"provider", provider, "url", target.Redacted(), "error", err}
	switch {
	case errors.Is(err, ErrNotConfigured):
		d.logger.WarnContext(ctx, "No credentials configured, passing through", attrs...)
	case errors.Is(err, ErrNotAuthorized):
		d.logger.ErrorContext(ctx, "Not authorized", attrs...)
	case errors.Is(err, ErrBucketNotFound):
		d.logger.ErrorContext(ctx, "Bucket could not be resolved", attrs...)
	default:
		d.logger.ErrorContext(ctx, "API error", attrs...)
	}
}
