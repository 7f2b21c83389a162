// Package gateway defines the search backend contract used by the match
// evaluator and provides an Elasticsearch implementation of it.
package gateway

import (
	"context"

	"github.com/agentstation/infer/pkg/pits"
	"github.com/agentstation/infer/pkg/query"
)

// Candidate is a search hit in a reference dataset.
type Candidate struct {
	ID   string `json:"id,omitempty"`
	URI  string `json:"uri,omitempty"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Identifier resolves the candidate identifier the same way PIT
// identifiers are resolved.
func (c Candidate) Identifier(prefix string) string {
	return pits.Identifier(c.ID, c.URI, prefix)
}

// Gateway executes a search request against one reference dataset and
// returns candidates best-ranked first. Implementations must be safe for
// concurrent use.
type Gateway interface {
	Search(ctx context.Context, dataset string, req query.Request) ([]Candidate, error)
}

// Func adapts a plain function to the Gateway interface.
type Func func(ctx context.Context, dataset string, req query.Request) ([]Candidate, error)

// Search implements Gateway.
func (f Func) Search(ctx context.Context, dataset string, req query.Request) ([]Candidate, error) {
	return f(ctx, dataset, req)
}
