// Package pits defines the PIT (point of interest/time) record reconciled by
// the pipeline, identifier resolution for PITs and search candidates, and an
// ndjson reader for PIT streams.
package pits

import (
	"encoding/json"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/agentstation/infer/pkg/errors"
)

// PIT is a single input record. It is never mutated after being read.
type PIT struct {
	ID       string            `json:"id,omitempty"`
	URI      string            `json:"uri,omitempty"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Geometry *geojson.Geometry `json:"geometry,omitempty"`

	// Histograph fields passed through to the log and errors sinks untouched.
	ValidSince json.RawMessage `json:"validSince,omitempty"`
	ValidUntil json.RawMessage `json:"validUntil,omitempty"`
	Data       map[string]any  `json:"data,omitempty"`
}

// Ref returns the raw identity of the PIT: its id, or its uri when it has none.
func (p PIT) Ref() string {
	if p.ID != "" {
		return p.ID
	}
	return p.URI
}

// Identifier resolves the PIT identifier written into relations, qualifying
// path-like ids with the given dataset prefix.
func (p PIT) Identifier(prefix string) string {
	return Identifier(p.ID, p.URI, prefix)
}

// HasGeometry reports whether the PIT carries a usable geometry.
func (p PIT) HasGeometry() bool {
	return p.Geometry != nil && p.Geometry.Geometry() != nil
}

// Centroid returns the mean of all geometry vertices.
func (p PIT) Centroid() (orb.Point, bool) {
	if p.Geometry == nil {
		return orb.Point{}, false
	}
	return Centroid(p.Geometry.Geometry())
}

// Validate checks the identity invariant: at least one of id and uri is set.
func (p PIT) Validate() error {
	if p.ID == "" && p.URI == "" {
		return errors.NewValidationError("id", nil, "PIT must have an id or a uri")
	}
	return nil
}

// Identifier prefers id over uri. An id containing a path separator is
// qualified with prefix unless it already starts with it; plain ids and uris
// are returned unchanged.
func Identifier(id, uri, prefix string) string {
	if id == "" {
		return uri
	}
	if prefix != "" && strings.Contains(id, "/") && !strings.HasPrefix(id, prefix+"/") {
		return prefix + "/" + id
	}
	return id
}
