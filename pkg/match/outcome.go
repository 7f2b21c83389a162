package match

import (
	"encoding/json"
	"fmt"

	"github.com/agentstation/infer/pkg/overrides"
	"github.com/agentstation/infer/pkg/pits"
	"github.com/agentstation/infer/pkg/rules"
)

// Kind tags an Outcome.
type Kind int

// Outcome kinds.
const (
	KindRelation Kind = iota
	KindNoMatch
	KindError
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindRelation:
		return "relation"
	case KindNoMatch:
		return "no_match"
	case KindError:
		return "error"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < KindRelation || k > KindError {
		return nil, fmt.Errorf("invalid outcome kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// Relation links a PIT to a reference dataset record.
type Relation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Task is one (PIT, rule) pair to evaluate against a reference dataset.
type Task struct {
	PIT     pits.PIT
	Rule    *rules.Rule
	Dataset string
	Index   *overrides.Index
}

// Outcome is the result of evaluating one Task. Relation is set only for
// KindRelation and Err only for KindError.
type Outcome struct {
	Kind     Kind
	Dataset  string
	RuleID   string
	PIT      pits.PIT
	Relation *Relation

	// Override reports that an override entry decided the outcome.
	Override bool

	Err error
}

func newOutcome(t Task, kind Kind) Outcome {
	o := Outcome{Kind: kind, Dataset: t.Dataset, PIT: t.PIT}
	if t.Rule != nil {
		o.RuleID = t.Rule.ID
	}
	return o
}

// logEntry is the full serialized form of an Outcome.
type logEntry struct {
	Kind     Kind      `json:"kind"`
	Dataset  string    `json:"dataset"`
	Rule     string    `json:"rule,omitempty"`
	PIT      pits.PIT  `json:"pit"`
	Relation *Relation `json:"relation,omitempty"`
	Override bool      `json:"override,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (o Outcome) MarshalJSON() ([]byte, error) {
	entry := logEntry{
		Kind:     o.Kind,
		Dataset:  o.Dataset,
		Rule:     o.RuleID,
		PIT:      o.PIT,
		Relation: o.Relation,
		Override: o.Override,
	}
	if o.Err != nil {
		entry.Error = o.Err.Error()
	}
	return json.Marshal(entry)
}
