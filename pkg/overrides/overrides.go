// Package overrides builds the per-rule lookup table of manual overrides.
// Override entries force a relation (or an explicit no-match) for one PIT
// without consulting the search backend.
package overrides

import (
	"fmt"

	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/normalize"
	"github.com/agentstation/infer/pkg/rules"
)

// Target is the forced outcome of an override.
type Target struct {
	// To is the forced relation target; empty when NoRelation is set.
	To         string
	NoRelation bool
}

// Index maps normalized identifiers to forced targets. It is read-only once
// built and safe for concurrent use.
type Index struct {
	targets    map[string]Target
	duplicates []string
}

// Build normalizes every override source within the scope of dataset and
// indexes it. When a source occurs more than once the last entry wins and
// the key is reported by Duplicates.
func Build(list []rules.Override, n normalize.Normalizer, dataset string) (*Index, error) {
	idx := &Index{targets: make(map[string]Target, len(list))}
	for i, o := range list {
		key, err := n.Normalize(o.From, dataset)
		if err != nil {
			return nil, errors.NewConfigError(fmt.Sprintf("override[%d]", i),
				fmt.Sprintf("cannot normalize %q", o.From), err)
		}
		if _, seen := idx.targets[key]; seen {
			idx.duplicates = append(idx.duplicates, key)
		}
		idx.targets[key] = Target{To: o.To, NoRelation: o.NoRelation()}
	}
	return idx, nil
}

// ForRule builds the index of a rule scoped to its reference dataset.
func ForRule(r *rules.Rule, n normalize.Normalizer) (*Index, error) {
	idx, err := Build(r.Override, n, r.Dataset)
	if err != nil {
		return nil, errors.WrapConfig("rules/"+r.ID, err)
	}
	return idx, nil
}

// Lookup returns the forced target of a normalized identifier.
func (idx *Index) Lookup(id string) (Target, bool) {
	if idx == nil {
		return Target{}, false
	}
	t, ok := idx.targets[id]
	return t, ok
}

// Len returns the number of distinct override sources.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.targets)
}

// Duplicates returns the normalized sources that occurred more than once.
func (idx *Index) Duplicates() []string {
	if idx == nil {
		return nil
	}
	return append([]string(nil), idx.duplicates...)
}
