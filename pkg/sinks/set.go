package sinks

import (
	"os"
	"path/filepath"

	"github.com/agentstation/infer/pkg/constants"
	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/match"
)

// Set holds the three output streams of one reference dataset.
type Set struct {
	Dataset   string
	Log       Sink
	Relations Sink
	Errors    Sink

	stats Stats
}

// Stats counts the outcomes published to a Set.
type Stats struct {
	Relations int `json:"relations"`
	NoMatches int `json:"noMatches"`
	Errors    int `json:"errors"`
}

// Total returns the number of published outcomes.
func (s Stats) Total() int {
	return s.Relations + s.NoMatches + s.Errors
}

// Factory opens the sink set of a reference dataset.
type Factory func(dataset string) (*Set, error)

// Paths returns the log, relations and errors file paths of a dataset.
func Paths(dir, dataset string) (log, relations, errs string) {
	return filepath.Join(dir, dataset+constants.LogFileSuffix),
		filepath.Join(dir, dataset+constants.RelationsFileSuffix),
		filepath.Join(dir, dataset+constants.ErrorsFileSuffix)
}

// Dir returns a Factory creating ndjson files in dir.
func Dir(dir string) Factory {
	return func(dataset string) (*Set, error) {
		return Open(dir, dataset)
	}
}

// Open creates dir if needed and the three ndjson files of dataset in it.
func Open(dir, dataset string) (*Set, error) {
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", dir, err)
	}

	logPath, relPath, errPath := Paths(dir, dataset)
	var opened []Sink
	open := func(path string) (Sink, error) {
		s, err := Create(path)
		if err != nil {
			for _, o := range opened {
				_ = o.Close()
			}
			return nil, err
		}
		opened = append(opened, s)
		return s, nil
	}

	set := &Set{Dataset: dataset}
	var err error
	if set.Log, err = open(logPath); err != nil {
		return nil, err
	}
	if set.Relations, err = open(relPath); err != nil {
		return nil, err
	}
	if set.Errors, err = open(errPath); err != nil {
		return nil, err
	}
	return set, nil
}

// Publish writes o to the log and then to exactly one of the relations or
// errors streams.
func (s *Set) Publish(o match.Outcome) error {
	if err := s.Log.Write(o); err != nil {
		return err
	}
	switch o.Kind {
	case match.KindRelation:
		s.stats.Relations++
		return s.Relations.Write(o.Relation)
	case match.KindNoMatch:
		s.stats.NoMatches++
	default:
		s.stats.Errors++
	}
	return s.Errors.Write(o.PIT)
}

// Stats returns the outcome counts published so far.
func (s *Set) Stats() Stats {
	return s.stats
}

// Close closes the relations and errors streams and then the log.
func (s *Set) Close() error {
	return errors.Join(s.Relations.Close(), s.Errors.Close(), s.Log.Close())
}
