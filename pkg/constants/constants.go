// Package constants provides shared constants used throughout the infer codebase.
// This includes concurrency limits, file permissions and output naming that
// should be consistent across the pipeline and the CLI.
package constants

import "time"

// Concurrency constants
const (
	// DefaultConcurrency is the default number of simultaneous match evaluations
	DefaultConcurrency = 10

	// MaxConcurrency caps the configurable concurrency limit
	MaxConcurrency = 256
)

// Timeout constants define various timeout durations used in the application
const (
	// ShutdownTimeout is how long the CLI waits for cleanup after a failed run
	ShutdownTimeout = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Input limits
const (
	// MaxRecordSize is the largest accepted ndjson input line in bytes
	MaxRecordSize = 16 * 1024 * 1024

	// InitialRecordBuffer is the initial scanner buffer size in bytes
	InitialRecordBuffer = 64 * 1024
)

// Output file naming
const (
	// RulesFileSuffix is appended to a source dataset id to find its rules file
	RulesFileSuffix = ".rules.yaml"

	// LogFileSuffix names the sink receiving every outcome
	LogFileSuffix = ".log.ndjson"

	// RelationsFileSuffix names the sink receiving accepted relations
	RelationsFileSuffix = ".relations.ndjson"

	// ErrorsFileSuffix names the sink receiving unmatched and failed PITs
	ErrorsFileSuffix = ".errors.ndjson"
)

// Search backend defaults
const (
	// DefaultElasticsearchURL is used when no backend address is configured
	DefaultElasticsearchURL = "http://localhost:9200"

	// DefaultNameField is the backend field matched by the name query
	DefaultNameField = "name"

	// DefaultTypeField is the backend field holding the candidate type
	DefaultTypeField = "type"

	// DefaultGeoField is the backend geo_point field compared against the PIT centroid
	DefaultGeoField = "centroid"
)
