package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a record store is not provided.
	ErrStoreRequired = errors.New("record store required")

	// ErrNoPaths is returned when IngestPaths is called without paths.
	ErrNoPaths = errors.New("no paths to ingest")
)
