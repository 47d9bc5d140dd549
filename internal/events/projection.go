package events

import "time"

// ProjectionStart is emitted before a selection set is projected over a source.
type ProjectionStart struct {
	Message       string
	OperationName string
	OperationType string
}

// ProjectionFinish is emitted after a projection completes.
type ProjectionFinish struct {
	Message       string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// FieldResolved is emitted after one field has been resolved during a projection.
type FieldResolved struct {
	Path     string
	Message  string
	Field    string
	Deferred bool
	Err      error
	Duration time.Duration
}
