package model

import "errors"

// Workflow error taxonomy. Callers classify failures with errors.Is; the
// eris wrap chain carries the operation-specific context.
var (
	// ErrValidation marks malformed input (empty not-award reason, empty
	// note text, unknown status).
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition marks a status change outside the allowed graph.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPreconditionFailed marks a stage or status gate that was not
	// satisfied for the requested operation.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrConflict marks an optimistic-concurrency loss: the stored status
	// changed since it was read, most importantly a double-award race.
	ErrConflict = errors.New("conflict: state changed concurrently")

	// ErrNotFound marks a missing assignment, event, tariff, or note.
	ErrNotFound = errors.New("not found")

	// ErrStageGate marks a blocked stage advancement (no awarded
	// assignment yet and no override).
	ErrStageGate = errors.New("stage gate: event has no awarded assignment")

	// ErrExternalService marks an unavailable collaborator (directory
	// lookup, notification webhook).
	ErrExternalService = errors.New("external service unavailable")
)
