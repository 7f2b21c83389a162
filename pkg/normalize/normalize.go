// Package normalize converts heterogeneous identifier forms (local ids,
// dataset-qualified ids, known dataset URLs, URNs) into one canonical
// dataset-scoped URN so override lists and PITs can be compared.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentstation/infer/pkg/errors"
)

// Prefix is the URN namespace used for canonical identifiers.
const Prefix = "urn:hgid:"

// Normalizer maps an identifier to its canonical form within a dataset scope.
// Implementations must be pure and safe for concurrent use.
type Normalizer interface {
	Normalize(id, dataset string) (string, error)
}

// Func adapts a plain function to the Normalizer interface.
type Func func(id, dataset string) (string, error)

// Normalize implements Normalizer.
func (f Func) Normalize(id, dataset string) (string, error) {
	return f(id, dataset)
}

// Pattern recognizes the URLs of one dataset. Match must capture the local id
// in its first group; Template rebuilds the URL from that id with %s.
type Pattern struct {
	Dataset  string
	Match    *regexp.Regexp
	Template string
}

// URN is the default Normalizer.
type URN struct {
	patterns []Pattern
}

// DefaultPatterns covers the reference datasets used by the bundled rules.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Dataset:  "geonames",
			Match:    regexp.MustCompile(`^https?://sws\.geonames\.org/(\d+)/?$`),
			Template: "http://sws.geonames.org/%s",
		},
		{
			Dataset:  "tgn",
			Match:    regexp.MustCompile(`^https?://vocab\.getty\.edu/tgn/(\d+)$`),
			Template: "http://vocab.getty.edu/tgn/%s",
		},
		{
			Dataset:  "nwb",
			Match:    regexp.MustCompile(`^https?://nwb\.histograph\.io/([\w-]+)$`),
			Template: "http://nwb.histograph.io/%s",
		},
	}
}

// New returns a URN normalizer recognizing the given URL patterns.
func New(patterns ...Pattern) *URN {
	return &URN{patterns: patterns}
}

// Default returns a URN normalizer with DefaultPatterns.
func Default() *URN {
	return New(DefaultPatterns()...)
}

// Normalize implements Normalizer.
//
//	urn:...                      -> unchanged
//	http://sws.geonames.org/123  -> urn:hgid:geonames/123 (known pattern)
//	http://example.org/x         -> unchanged (unknown URL)
//	tgn/123                      -> urn:hgid:tgn/123
//	123 (dataset "tgn")          -> urn:hgid:tgn/123
func (n *URN) Normalize(id, dataset string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewValidationError("id", id, "cannot normalize an empty identifier")
	}

	if strings.HasPrefix(id, "urn:") {
		return id, nil
	}

	if isURL(id) {
		for _, p := range n.patterns {
			if m := p.Match.FindStringSubmatch(id); len(m) > 1 {
				return Prefix + p.Dataset + "/" + m[1], nil
			}
		}
		return id, nil
	}

	if strings.Contains(id, "/") {
		return Prefix + id, nil
	}
	if dataset == "" {
		return "", errors.NewValidationError("dataset", dataset, fmt.Sprintf("local id %q needs a dataset scope", id))
	}
	return Prefix + dataset + "/" + id, nil
}

// Expand turns a canonical URN back into the dataset URL when a pattern is
// known, or strips the namespace otherwise. Other identifiers pass through.
func (n *URN) Expand(id string) string {
	if !strings.HasPrefix(id, Prefix) {
		return id
	}
	rest := strings.TrimPrefix(id, Prefix)
	dataset, local, ok := strings.Cut(rest, "/")
	if ok {
		for _, p := range n.patterns {
			if p.Dataset == dataset && p.Template != "" {
				return fmt.Sprintf(p.Template, local)
			}
		}
	}
	return rest
}

func isURL(id string) bool {
	return strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://")
}
