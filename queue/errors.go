package queue

import "errors"

var (
	// ErrNoTask is returned by Take when no task is pending.
	ErrNoTask = errors.New("no pending task")

	// ErrUnknownTaskKind is recorded on tasks whose kind has no handler.
	ErrUnknownTaskKind = errors.New("unknown task kind")

	// ErrWrongRefTable is recorded on tasks that reference the wrong table for their kind.
	ErrWrongRefTable = errors.New("task references wrong table")

	// ErrStoreRequired is returned when a nil store is passed to New.
	ErrStoreRequired = errors.New("store is required")

	// ErrEmptyKind is returned when enqueuing or registering an empty kind.
	ErrEmptyKind = errors.New("task kind cannot be empty")
)
