package engine

import "errors"

// Engine error taxonomy. Controllers map these to HTTP statuses with
// errors.Is; anything else is an internal error.
var (
	// ErrAlreadyExecuted means a step was already executed for this lead.
	// Expected under retries and racing clients; callers treat it as a
	// no-op success.
	ErrAlreadyExecuted = errors.New("step already executed for this lead")

	// ErrRecordFailed means the interaction insert failed before any send
	// or enrollment mutation. The whole execute call can be retried.
	ErrRecordFailed = errors.New("failed to record interaction")

	// ErrCreditExhausted means the organization has no WhatsApp send
	// credits left. Checked before anything is written.
	ErrCreditExhausted = errors.New("whatsapp send credits exhausted")

	// ErrNotFound means the referenced enrollment or step does not exist
	// for the organization.
	ErrNotFound = errors.New("record not found")

	// ErrQueryFailed wraps storage fetch failures; callers surface a single
	// generic message and no partial results.
	ErrQueryFailed = errors.New("failed to fetch activities")
)
