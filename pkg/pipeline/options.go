package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentstation/infer/pkg/constants"
	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/logging"
	"github.com/agentstation/infer/pkg/match"
	"github.com/agentstation/infer/pkg/normalize"
)

type options struct {
	concurrency int
	normalizer  normalize.Normalizer
	logger      *zerolog.Logger
	registry    *prometheus.Registry
	onComplete  func(Summary)
	match       []match.Option
}

func defaultOptions() *options {
	return &options{
		concurrency: constants.DefaultConcurrency,
		normalizer:  normalize.Default(),
		logger:      logging.Default(),
	}
}

// Option configures a Pipeline.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithConcurrency bounds the number of simultaneous task evaluations.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		if n < 1 || n > constants.MaxConcurrency {
			return &errors.ValidationError{
				Field:   "concurrency",
				Value:   n,
				Message: "must be between 1 and 256",
			}
		}
		o.concurrency = n
		return nil
	}
}

// WithNormalizer sets the identifier normalizer used for override lookups.
func WithNormalizer(n normalize.Normalizer) Option {
	return func(o *options) error {
		if n == nil {
			return &errors.ValidationError{Field: "normalizer", Message: "cannot be nil"}
		}
		o.normalizer = n
		return nil
	}
}

// WithLogger sets the logger; it is also attached to the run context.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// WithRegistry registers the pipeline metrics on r instead of a private
// registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(o *options) error {
		o.registry = r
		return nil
	}
}

// WithOnComplete sets a callback invoked once, after every sink closed.
func WithOnComplete(fn func(Summary)) Option {
	return func(o *options) error {
		o.onComplete = fn
		return nil
	}
}

// WithSource qualifies path-like PIT ids with the source dataset prefix.
func WithSource(source string) Option {
	return func(o *options) error {
		o.match = append(o.match, match.WithSource(source))
		return nil
	}
}

// WithExpander rewrites relation endpoints before they are written.
func WithExpander(fn func(string) string) Option {
	return func(o *options) error {
		o.match = append(o.match, match.WithExpander(fn))
		return nil
	}
}
