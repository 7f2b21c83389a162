package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/infer/pkg/constants"
	"github.com/agentstation/infer/pkg/errors"
)

// ruleSpec is the YAML form of a rule.
//
//	geonames:
//	  - types: {from: hg:Place, to: hg:Place}
//	    geoDistance: 4000
//	    textDistance: 2
//	    relation: hg:sameHgConcept
//	    filter: "!pit.uri.contains('term')"
type ruleSpec struct {
	Types struct {
		From any    `yaml:"from"`
		To   string `yaml:"to"`
	} `yaml:"types"`
	GeoDistance  *float64       `yaml:"geoDistance"`
	TextDistance *int           `yaml:"textDistance"`
	Name         *string        `yaml:"name"`
	NameExpr     string         `yaml:"nameExpr"`
	Relation     string         `yaml:"relation"`
	Filter       string         `yaml:"filter"`
	Override     []overrideSpec `yaml:"override"`
}

type overrideSpec struct {
	From string  `yaml:"from"`
	To   *string `yaml:"to"`
}

// RulesFile returns the rules file of a source dataset inside dir.
func RulesFile(dir, source string) string {
	return filepath.Join(dir, source+constants.RulesFileSuffix)
}

// LoadDir loads the rules file of a source dataset from dir.
func LoadDir(dir, source string, datasets ...string) (*Set, error) {
	return Load(RulesFile(dir, source), datasets...)
}

// Load reads a rules file and returns the rule sets of the requested
// reference datasets, or all of them when none are given. Every failure is
// a ConfigError.
func Load(path string, datasets ...string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("rules", fmt.Sprintf("cannot read rules file %s", path),
			errors.WrapIO("read", path, err))
	}
	set, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	return set.Restrict(datasets...)
}

// Parse decodes a rules document. file names the document in errors.
func Parse(data []byte, file string) (*Set, error) {
	var specs map[string][]ruleSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, errors.NewConfigError("rules", fmt.Sprintf("cannot parse %s", file),
			errors.WrapParse("yaml", file, err))
	}

	// A second pass keeps the document's dataset order.
	var order yaml.MapSlice
	if err := yaml.Unmarshal(data, &order); err != nil {
		return nil, errors.NewConfigError("rules", fmt.Sprintf("cannot parse %s", file),
			errors.WrapParse("yaml", file, err))
	}

	if len(order) == 0 {
		return nil, errors.NewConfigError("rules", fmt.Sprintf("no rule sets defined in %s", file), nil)
	}

	set := NewSet()
	for _, item := range order {
		dataset, ok := item.Key.(string)
		if !ok || dataset == "" {
			return nil, errors.NewConfigError("rules", fmt.Sprintf("invalid dataset key %v in %s", item.Key, file), nil)
		}
		set.Add(dataset)
		for i, spec := range specs[dataset] {
			component := fmt.Sprintf("rules/%s#%d", dataset, i)
			r, err := spec.build(component)
			if err != nil {
				return nil, errors.NewConfigError(component, err.Error(), err)
			}
			if err := r.Validate(); err != nil {
				return nil, errors.NewConfigError(component, err.Error(), err)
			}
			set.Add(dataset, r)
		}
	}
	return set, nil
}

func (s ruleSpec) build(component string) (*Rule, error) {
	from, err := typeList(s.Types.From)
	if err != nil {
		return nil, err
	}

	r := &Rule{
		Types:       Types{From: from, To: s.Types.To},
		GeoDistance: s.GeoDistance,
		Relation:    s.Relation,
	}
	if s.TextDistance != nil {
		r.TextDistance = *s.TextDistance
	}

	switch {
	case s.Name != nil && s.NameExpr != "":
		return nil, errors.NewValidationError("name", *s.Name, "name and nameExpr are mutually exclusive")
	case s.Name != nil:
		r.Name = LiteralName(*s.Name)
	case s.NameExpr != "":
		name, err := CompileName(s.NameExpr, component+".nameExpr")
		if err != nil {
			return nil, err
		}
		r.Name = name
	}

	if s.Filter != "" {
		filter, err := CompileFilter(s.Filter, component+".filter")
		if err != nil {
			return nil, err
		}
		r.Filter = filter
	}

	for _, o := range s.Override {
		override := Override{From: o.From}
		if o.To != nil {
			override.To = *o.To
		}
		r.Override = append(r.Override, override)
	}
	return r, nil
}

// typeList accepts `from: hg:Place` and `from: [hg:Place, hg:Municipality]`.
func typeList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, errors.NewValidationError("types.from", e, "types must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.NewValidationError("types.from", v, "must be a string or a list of strings")
	}
}
