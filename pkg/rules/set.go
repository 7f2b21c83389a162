package rules

import (
	"context"
	"fmt"

	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/logging"
	"github.com/agentstation/infer/pkg/pits"
)

// Set is the per-reference-dataset list of rules of one run. Dataset order
// and rule order are preserved. A Set is read-only once loaded and safe for
// concurrent use.
type Set struct {
	order []string
	rules map[string][]*Rule
}

// NewSet returns an empty rule set.
func NewSet() *Set {
	return &Set{rules: make(map[string][]*Rule)}
}

// Add appends rules to a dataset, assigning Rule.ID and Rule.Dataset.
func (s *Set) Add(dataset string, rules ...*Rule) {
	if _, ok := s.rules[dataset]; !ok {
		s.order = append(s.order, dataset)
		s.rules[dataset] = nil
	}
	for _, r := range rules {
		r.Dataset = dataset
		r.ID = fmt.Sprintf("%s#%d", dataset, len(s.rules[dataset]))
		s.rules[dataset] = append(s.rules[dataset], r)
	}
}

// Datasets returns the reference dataset ids in load order.
func (s *Set) Datasets() []string {
	return append([]string(nil), s.order...)
}

// Rules returns the rules of a dataset in order.
func (s *Set) Rules(dataset string) []*Rule {
	return s.rules[dataset]
}

// Len returns the total number of rules.
func (s *Set) Len() int {
	n := 0
	for _, rs := range s.rules {
		n += len(rs)
	}
	return n
}

// Restrict returns a Set holding only the given datasets, in the given order.
// Without datasets it returns s. A dataset without rules is a ConfigError.
func (s *Set) Restrict(datasets ...string) (*Set, error) {
	if len(datasets) == 0 {
		return s, nil
	}
	out := NewSet()
	for _, d := range datasets {
		rs, ok := s.rules[d]
		if !ok {
			return nil, errors.NewConfigError("rules",
				fmt.Sprintf("no rule set defined for reference dataset %q", d),
				errors.NewNotFoundError("rule set", d))
		}
		if _, dup := out.rules[d]; dup {
			continue
		}
		out.order = append(out.order, d)
		out.rules[d] = rs
	}
	return out, nil
}

// Selection is one applicable (reference dataset, rule) pair for a PIT.
type Selection struct {
	Dataset string
	Rule    *Rule
}

// Select returns the rules applicable to p, dataset order first and rule
// order second. A filter that fails to evaluate skips its rule for this PIT.
func (s *Set) Select(ctx context.Context, p pits.PIT) []Selection {
	var out []Selection
	for _, dataset := range s.order {
		for _, r := range s.rules[dataset] {
			ok, err := r.AppliesTo(p)
			if err != nil {
				ruleCtx := logging.WithPIT(logging.WithRule(ctx, r.ID), p.Ref())
				logging.FromContext(ruleCtx).Warn().Err(err).Msg("Rule filter failed, skipping rule")
				continue
			}
			if ok {
				out = append(out, Selection{Dataset: dataset, Rule: r})
			}
		}
	}
	return out
}
