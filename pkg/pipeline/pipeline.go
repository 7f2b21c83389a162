// Package pipeline runs a reconciliation: it expands every input PIT into
// (PIT, rule) tasks, evaluates them with bounded concurrency and routes each
// outcome to the sinks of its reference dataset.
package pipeline

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/gateway"
	"github.com/agentstation/infer/pkg/logging"
	"github.com/agentstation/infer/pkg/match"
	"github.com/agentstation/infer/pkg/overrides"
	"github.com/agentstation/infer/pkg/pits"
	"github.com/agentstation/infer/pkg/rules"
	"github.com/agentstation/infer/pkg/sinks"
)

// Source yields PITs. Next returns io.EOF at the end of input; a
// MalformedInputError skips one record.
type Source interface {
	Next() (pits.PIT, error)
}

// SliceSource yields a fixed list of PITs.
type SliceSource []pits.PIT

// Next implements Source.
func (s *SliceSource) Next() (pits.PIT, error) {
	if len(*s) == 0 {
		return pits.PIT{}, io.EOF
	}
	p := (*s)[0]
	*s = (*s)[1:]
	return p, nil
}

// Summary describes a finished run.
type Summary struct {
	RunID     string                 `json:"runId"`
	Started   time.Time              `json:"started"`
	Duration  time.Duration          `json:"duration"`
	PITs      int                    `json:"pits"`
	Skipped   int                    `json:"skipped"`
	Unmatched int                    `json:"unmatched"`
	Tasks     int                    `json:"tasks"`
	Datasets  map[string]sinks.Stats `json:"datasets"`
}

// Pipeline is a single reconciliation run. It can be run only once.
type Pipeline struct {
	rules     *rules.Set
	evaluator *match.Evaluator
	sinks     sinks.Factory
	opts      *options
	metrics   *Metrics
	registry  *prometheus.Registry
	state     atomic.Int32
}

// New creates a pipeline over a loaded rule set, searching through g and
// writing to the sink sets opened by factory.
func New(set *rules.Set, g gateway.Gateway, factory sinks.Factory, opts ...Option) (*Pipeline, error) {
	if set == nil || g == nil || factory == nil {
		return nil, &errors.ValidationError{Field: "pipeline", Message: "rules, gateway and sinks are required"}
	}
	o, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, err
	}

	registry := o.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	return &Pipeline{
		rules:     set,
		evaluator: match.NewEvaluator(g, o.normalizer, o.match...),
		sinks:     factory,
		opts:      o,
		metrics:   newMetrics(registry),
		registry:  registry,
	}, nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Metrics returns the pipeline collectors.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// Registry returns the registry holding the pipeline metrics.
func (p *Pipeline) Registry() *prometheus.Registry {
	return p.registry
}

// Run reads src to the end and returns once every outcome has been written
// and every sink closed. Override indexes and sinks are prepared before any
// task runs; a failure there is returned as a ConfigError or IOError and no
// task executes. Task failures never fail the run.
//
// Canceling ctx stops reading input. Tasks already submitted still produce
// an outcome, and the sinks still close.
func (p *Pipeline) Run(ctx context.Context, src Source) (Summary, error) {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateExpanding)) {
		return Summary{}, errors.ErrAlreadyRun
	}
	defer p.state.Store(int32(StateClosed))

	summary := Summary{
		RunID:    uuid.NewString(),
		Started:  time.Now(),
		Datasets: make(map[string]sinks.Stats),
	}
	ctx = logging.WithRunID(logging.WithLogger(ctx, p.opts.logger), summary.RunID)
	logger := logging.FromContext(ctx)

	indexes, err := p.buildIndexes(ctx)
	if err != nil {
		return summary, err
	}
	sets, err := p.openSinks()
	if err != nil {
		return summary, err
	}

	logger.Info().
		Strs("datasets", p.rules.Datasets()).
		Int("rules", p.rules.Len()).
		Int("concurrency", p.opts.concurrency).
		Msg("Starting reconciliation")

	outcomes := make(chan match.Outcome, p.opts.concurrency)
	drained := make(chan error, 1)
	go func() {
		drained <- p.drain(ctx, sets, outcomes)
	}()

	tasks := pool.New().WithMaxGoroutines(p.opts.concurrency)
	readErr := p.expand(ctx, src, indexes, tasks, outcomes, &summary)

	p.state.Store(int32(StateRunning))
	tasks.Wait()

	p.state.Store(int32(StateDraining))
	close(outcomes)
	sinkErr := <-drained

	var closeErrs []error
	for _, dataset := range p.rules.Datasets() {
		set := sets[dataset]
		summary.Datasets[dataset] = set.Stats()
		if err := set.Close(); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}
	summary.Duration = time.Since(summary.Started)

	logger.Info().
		Int("pits", summary.PITs).
		Int("skipped", summary.Skipped).
		Int("unmatched", summary.Unmatched).
		Int("tasks", summary.Tasks).
		Dur("duration", summary.Duration).
		Msg("Reconciliation finished")

	p.state.Store(int32(StateClosed))
	if p.opts.onComplete != nil {
		p.opts.onComplete(summary)
	}

	return summary, errors.Join(readErr, sinkErr, errors.Join(closeErrs...))
}

// buildIndexes builds the override index of every rule once per run.
func (p *Pipeline) buildIndexes(ctx context.Context) (map[*rules.Rule]*overrides.Index, error) {
	indexes := make(map[*rules.Rule]*overrides.Index)
	for _, dataset := range p.rules.Datasets() {
		for _, r := range p.rules.Rules(dataset) {
			idx, err := overrides.ForRule(r, p.opts.normalizer)
			if err != nil {
				return nil, err
			}
			if dups := idx.Duplicates(); len(dups) > 0 {
				logging.FromContext(logging.WithRule(ctx, r.ID)).Warn().
					Strs("keys", dups).
					Msg("Duplicate override sources, last entry wins")
			}
			indexes[r] = idx
		}
	}
	return indexes, nil
}

func (p *Pipeline) openSinks() (map[string]*sinks.Set, error) {
	sets := make(map[string]*sinks.Set)
	for _, dataset := range p.rules.Datasets() {
		set, err := p.sinks(dataset)
		if err != nil {
			for _, s := range sets {
				_ = s.Close()
			}
			return nil, err
		}
		sets[dataset] = set
	}
	return sets, nil
}

// expand reads src and submits one task per applicable (dataset, rule).
// Submission blocks while the pool is full.
func (p *Pipeline) expand(ctx context.Context, src Source, indexes map[*rules.Rule]*overrides.Index,
	tasks *pool.Pool, outcomes chan<- match.Outcome, summary *Summary) error {
	logger := logging.FromContext(ctx)

	for ctx.Err() == nil {
		pit, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if errors.IsMalformedInput(err) {
			logger.Warn().Err(err).Msg("Skipping malformed PIT")
			summary.Skipped++
			p.metrics.PITs.WithLabelValues("skipped").Inc()
			continue
		}
		if err != nil {
			return err
		}
		if err := pit.Validate(); err != nil {
			logger.Warn().Err(err).Str("name", pit.Name).Msg("Skipping PIT without identity")
			summary.Skipped++
			p.metrics.PITs.WithLabelValues("skipped").Inc()
			continue
		}

		summary.PITs++
		p.metrics.PITs.WithLabelValues("read").Inc()

		selected := p.rules.Select(ctx, pit)
		if len(selected) == 0 {
			summary.Unmatched++
			p.metrics.PITs.WithLabelValues("unmatched").Inc()
			continue
		}

		for _, sel := range selected {
			task := match.Task{PIT: pit, Rule: sel.Rule, Dataset: sel.Dataset, Index: indexes[sel.Rule]}
			summary.Tasks++
			tasks.Go(func() {
				outcomes <- p.evaluate(ctx, task)
			})
		}
	}

	logger.Warn().Err(ctx.Err()).Msg("Input reading canceled")
	return ctx.Err()
}

func (p *Pipeline) evaluate(ctx context.Context, task match.Task) match.Outcome {
	p.metrics.InFlight.Inc()
	defer p.metrics.InFlight.Dec()

	timer := prometheus.NewTimer(p.metrics.TaskDuration.WithLabelValues(task.Dataset))
	defer timer.ObserveDuration()

	return p.evaluator.Evaluate(ctx, task)
}

// drain is the single writer of every sink. It consumes outcomes until the
// channel is closed and returns the first publish error.
func (p *Pipeline) drain(ctx context.Context, sets map[string]*sinks.Set, outcomes <-chan match.Outcome) error {
	var first error
	for o := range outcomes {
		p.metrics.Outcomes.WithLabelValues(o.Dataset, o.Kind.String()).Inc()

		if o.Kind == match.KindError {
			outcomeLogger(ctx, o).Debug().Err(o.Err).Msg("Task failed")
		}

		if err := sets[o.Dataset].Publish(o); err != nil && first == nil {
			outcomeLogger(ctx, o).Error().Err(err).Msg("Failed to write outcome")
			first = err
		}
	}
	return first
}

func outcomeLogger(ctx context.Context, o match.Outcome) *zerolog.Logger {
	ctx = logging.WithDataset(ctx, o.Dataset)
	ctx = logging.WithRule(ctx, o.RuleID)
	ctx = logging.WithPIT(ctx, o.PIT.Ref())
	return logging.FromContext(ctx)
}

// Totals sums the outcome counts of every reference dataset.
func (s Summary) Totals() sinks.Stats {
	var t sinks.Stats
	for _, st := range s.Datasets {
		t.Relations += st.Relations
		t.NoMatches += st.NoMatches
		t.Errors += st.Errors
	}
	return t
}
