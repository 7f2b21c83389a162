// Package query synthesizes search backend requests from a PIT and a rule.
// Every call builds a fresh Request value; nothing is shared between tasks.
package query

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/pits"
	"github.com/agentstation/infer/pkg/rules"
)

// Request is a single search request for the best candidate of one task.
type Request struct {
	TargetType    string     `json:"targetType"`
	TextQuery     string     `json:"textQuery"`
	TextFuzziness int        `json:"textFuzziness"`
	Geo           *GeoFilter `json:"geo,omitempty"`
}

// GeoFilter restricts candidates to a radius around a point.
type GeoFilter struct {
	Centroid     orb.Point `json:"centroid"`
	RadiusMeters float64   `json:"radiusMeters"`
}

// Distance renders the radius in the backend's unit syntax.
func (g GeoFilter) Distance() string {
	return fmt.Sprintf("%gm", g.RadiusMeters)
}

var stripParens = strings.NewReplacer("(", "", ")", "")

// Synthesize builds the request for p under r.
//
// The geo filter is added only when the rule sets geoDistance and the PIT
// has a geometry; without geometry it is omitted and the name query alone
// constrains the search.
func Synthesize(p pits.PIT, r *rules.Rule) (Request, error) {
	name, err := r.ResolveName(p)
	if err != nil {
		return Request{}, fmt.Errorf("resolve name for rule %s: %w", r.ID, err)
	}
	name = strings.TrimSpace(stripParens.Replace(name))
	if name == "" {
		return Request{}, errors.NewValidationError("name", p.Ref(), "resolved query name is empty")
	}

	req := Request{
		TargetType:    r.Types.To,
		TextQuery:     name,
		TextFuzziness: r.TextDistance,
	}

	if r.GeoDistance != nil {
		if centroid, ok := p.Centroid(); ok {
			req.Geo = &GeoFilter{Centroid: centroid, RadiusMeters: *r.GeoDistance}
		}
	}
	return req, nil
}

var phraseEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// QueryString renders the name as a proximity phrase query: "name"~n.
func (r Request) QueryString() string {
	return fmt.Sprintf(`"%s"~%d`, phraseEscaper.Replace(r.TextQuery), r.TextFuzziness)
}
