// Package rules holds the declarative matching rules of a run: which PIT
// types may be matched against which reference dataset, how the search
// query is built, and which manual overrides bypass the search backend.
package rules

import (
	"fmt"
	"slices"

	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/pits"
)

// Types restricts a rule to PITs of the From types and candidates of type To.
type Types struct {
	From []string
	To   string
}

// Override forces the outcome for one PIT. An empty To means "no relation".
type Override struct {
	From string
	To   string
}

// NoRelation reports whether the override forces a no-match.
func (o Override) NoRelation() bool {
	return o.To == ""
}

// Rule is an immutable matching rule scoped to one reference dataset.
type Rule struct {
	// ID is "<dataset>#<index>", assigned when the rule is added to a Set.
	ID      string
	Dataset string

	Types Types

	// GeoDistance is a radius in meters; nil means no geo constraint.
	GeoDistance *float64

	// TextDistance is the fuzzy proximity of the name query.
	TextDistance int

	// Name overrides the query name; nil falls back to the PIT name.
	Name Name

	Relation string

	// Filter gates the rule per PIT; nil accepts every PIT.
	Filter Filter

	Override []Override
}

// MatchesType reports whether the rule applies to PITs of the given type.
func (r *Rule) MatchesType(pitType string) bool {
	return slices.Contains(r.Types.From, pitType)
}

// AppliesTo reports whether the rule applies to p: its type is one of
// Types.From and the filter accepts it.
func (r *Rule) AppliesTo(p pits.PIT) (bool, error) {
	if !r.MatchesType(p.Type) {
		return false, nil
	}
	if r.Filter == nil {
		return true, nil
	}
	return r.Filter.Accept(p)
}

// ResolveName returns the name to search for p.
func (r *Rule) ResolveName(p pits.PIT) (string, error) {
	if r.Name == nil {
		return p.Name, nil
	}
	return r.Name.Resolve(p)
}

// Validate checks the rule's static invariants.
func (r *Rule) Validate() error {
	if len(r.Types.From) == 0 {
		return errors.NewValidationError("types.from", nil, "at least one PIT type is required")
	}
	for _, t := range r.Types.From {
		if t == "" {
			return errors.NewValidationError("types.from", r.Types.From, "types cannot be empty")
		}
	}
	if r.Types.To == "" {
		return errors.NewValidationError("types.to", nil, "target type is required")
	}
	if r.Relation == "" {
		return errors.NewValidationError("relation", nil, "relation is required")
	}
	if r.TextDistance < 0 {
		return errors.NewValidationError("textDistance", r.TextDistance, "must not be negative")
	}
	if r.GeoDistance != nil && *r.GeoDistance <= 0 {
		return errors.NewValidationError("geoDistance", *r.GeoDistance, "must be positive")
	}
	for i, o := range r.Override {
		if o.From == "" {
			return errors.NewValidationError(fmt.Sprintf("override[%d].from", i), nil, "override source is required")
		}
	}
	return nil
}
