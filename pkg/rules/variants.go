package rules

import "github.com/agentstation/infer/pkg/pits"

// Name resolves the query name of a rule. The set of implementations is
// closed: LiteralName and ComputedName.
type Name interface {
	Resolve(p pits.PIT) (string, error)
	isName()
}

// LiteralName is a constant query name.
type LiteralName string

// Resolve implements Name.
func (n LiteralName) Resolve(pits.PIT) (string, error) {
	return string(n), nil
}

func (LiteralName) isName() {}

// ComputedName derives the query name from the PIT. It must not retain or
// modify the PIT.
type ComputedName func(p pits.PIT) (string, error)

// Resolve implements Name.
func (n ComputedName) Resolve(p pits.PIT) (string, error) {
	return n(p)
}

func (ComputedName) isName() {}

// Filter decides whether a rule applies to a PIT. The set of implementations
// is closed: Always and Predicate.
type Filter interface {
	Accept(p pits.PIT) (bool, error)
	isFilter()
}

// Always accepts every PIT.
type Always struct{}

// Accept implements Filter.
func (Always) Accept(pits.PIT) (bool, error) {
	return true, nil
}

func (Always) isFilter() {}

// Predicate accepts the PITs for which it returns true.
type Predicate func(p pits.PIT) (bool, error)

// Accept implements Filter.
func (f Predicate) Accept(p pits.PIT) (bool, error) {
	return f(p)
}

func (Predicate) isFilter() {}
