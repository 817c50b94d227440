package domain

import "fmt"

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid payment: " + e.Reason
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "payment not found: " + e.ID
}

// ConflictError reports a compare-and-set that lost a race: the stored
// status no longer matched the expected one.
type ConflictError struct {
	ID       string
	Expected Status
	Actual   Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("payment %s: status is %q, expected %q", e.ID, e.Actual, e.Expected)
}

type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %q -> %q", e.From, e.To)
}

type TimeoutError struct {
	ID string
}

func (e *TimeoutError) Error() string {
	return "timed out waiting for transition lock on payment " + e.ID
}
