// Package match evaluates (PIT, rule) tasks into relation, no-match or error
// outcomes, consulting the rule's overrides before the search backend.
package match

import (
	"context"
	"fmt"

	"github.com/agentstation/infer/pkg/gateway"
	"github.com/agentstation/infer/pkg/logging"
	"github.com/agentstation/infer/pkg/normalize"
	"github.com/agentstation/infer/pkg/query"
)

// Evaluator turns Tasks into Outcomes. It holds no per-task state and is
// safe for concurrent use.
type Evaluator struct {
	gateway    gateway.Gateway
	normalizer normalize.Normalizer
	source     string
	expand     func(string) string
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithSource sets the source dataset prefix used to qualify PIT identifiers.
func WithSource(source string) Option {
	return func(e *Evaluator) {
		e.source = source
	}
}

// WithExpander rewrites relation endpoints before they are emitted, e.g. to
// expand canonical URNs into dataset URLs.
func WithExpander(fn func(string) string) Option {
	return func(e *Evaluator) {
		e.expand = fn
	}
}

// NewEvaluator creates an Evaluator searching through g.
func NewEvaluator(g gateway.Gateway, n normalize.Normalizer, opts ...Option) *Evaluator {
	e := &Evaluator{gateway: g, normalizer: n}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate produces exactly one Outcome for t. Failures never escape as
// errors; they become KindError outcomes.
func (e *Evaluator) Evaluate(ctx context.Context, t Task) Outcome {
	ctx = logging.WithDataset(ctx, t.Dataset)
	ctx = logging.WithRule(ctx, t.Rule.ID)
	ctx = logging.WithPIT(ctx, t.PIT.Ref())
	log := logging.FromContext(ctx)

	if t.Index.Len() > 0 {
		key, err := e.normalizer.Normalize(t.PIT.Ref(), t.Dataset)
		if err != nil {
			return e.fail(t, fmt.Errorf("normalize PIT identifier: %w", err))
		}
		if target, ok := t.Index.Lookup(key); ok {
			log.Debug().Str("key", key).Bool("no_relation", target.NoRelation).Msg("Override applied")
			if target.NoRelation {
				o := newOutcome(t, KindNoMatch)
				o.Override = true
				return o
			}
			o := e.relate(t, target.To)
			o.Override = true
			return o
		}
	}

	req, err := query.Synthesize(t.PIT, t.Rule)
	if err != nil {
		return e.fail(t, err)
	}

	candidates, err := e.gateway.Search(ctx, t.Dataset, req)
	if err != nil {
		log.Warn().Err(err).Msg("Search failed")
		return e.fail(t, err)
	}
	if len(candidates) == 0 {
		return newOutcome(t, KindNoMatch)
	}

	to := candidates[0].Identifier(t.Dataset)
	if to == "" {
		return e.fail(t, fmt.Errorf("candidate of type %q has neither id nor uri", candidates[0].Type))
	}
	return e.relate(t, to)
}

func (e *Evaluator) relate(t Task, to string) Outcome {
	from := t.PIT.Identifier(e.source)
	if e.expand != nil {
		from, to = e.expand(from), e.expand(to)
	}
	o := newOutcome(t, KindRelation)
	o.Relation = &Relation{From: from, To: to, Type: t.Rule.Relation}
	return o
}

func (e *Evaluator) fail(t Task, err error) Outcome {
	o := newOutcome(t, KindError)
	o.Err = err
	return o
}
