package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrRecoveryUnavailable = errors.New("credential recovery is unavailable")
	ErrNoPaymentSession    = errors.New("no payment session")
)

// ConflictError is returned when a slug, subdomain or custom domain is taken.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q is already in use", e.Field, e.Value)
}

// ValidationError is returned when a provisioning request is malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// UnknownPlanError is returned when pricing is asked for a tier it has no price for.
type UnknownPlanError struct {
	Plan Plan
}

func (e *UnknownPlanError) Error() string {
	return fmt.Sprintf("unknown plan %q", e.Plan)
}

// StepError wraps the failure of a fatal provisioning step.
type StepError struct {
	Step  string
	Stage Stage
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed during %s: %v", e.Step, e.Stage, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
