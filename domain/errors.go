package domain

import "errors"

var (
	// ErrInvalidSchedule indicates a schedule request that violates
	// schedule-type-specific constraints (bad cron pattern, past fire time).
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrInvalidTransition indicates an illegal status transition attempt.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrClaimConflict indicates another scheduler instance won the atomic
	// claim for a due deployment. Callers skip, they do not retry.
	ErrClaimConflict = errors.New("claim conflict")

	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
