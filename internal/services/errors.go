package services

import "errors"

// Domain error taxonomy. Handlers map these onto HTTP statuses; services
// return them directly and never swallow them.
var (
	// ErrInvalidTransition is returned when the requested event is not legal
	// from the gig's current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrUnauthorized is returned when the actor lacks the role or ownership
	// required for the action.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyAssigned is returned to messengers that lose an assignment race.
	ErrAlreadyAssigned = errors.New("gig already assigned")

	// ErrPreconditionFailed is returned when a transition's precondition does
	// not hold (e.g. required checklist items still incomplete).
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrNotFound is returned when the entity id is unknown.
	ErrNotFound = errors.New("not found")
)
