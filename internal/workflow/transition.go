package workflow

import "fmt"

// validTransitions lists every allowed (from → to) pair. CAPTCHA_PENDING and
// RETRYING can re-enter whichever step they interrupted.
var validTransitions = map[State][]State{
	StatePending:        {StateNavigating, StateFailed, StateAbandoned},
	StateNavigating:     {StateAuthenticating, StateCaptchaPending, StateRetrying, StateFailed, StateAbandoned},
	StateAuthenticating: {StateFormFilling, StateCaptchaPending, StateRetrying, StateFailed, StateAbandoned},
	StateFormFilling:    {StateSubmitting, StateCaptchaPending, StateRetrying, StateFailed, StateAbandoned},
	StateSubmitting:     {StateConfirmed, StateCaptchaPending, StateRetrying, StateFailed, StateAbandoned},
	StateCaptchaPending: {StateNavigating, StateAuthenticating, StateFormFilling, StateSubmitting, StateFailed, StateAbandoned},
	StateRetrying:       {StateNavigating, StateAuthenticating, StateFormFilling, StateSubmitting, StateFailed, StateAbandoned},
	// CONFIRMED, FAILED and ABANDONED are terminal; no outgoing transitions
}

// stepOrder is the happy path through the in-flight steps.
var stepOrder = []State{StateNavigating, StateAuthenticating, StateFormFilling, StateSubmitting}

// ParseState converts a raw string to a State, returning an error for
// unknown values.
func ParseState(s string) (State, error) {
	st := State(s)
	switch st {
	case StatePending, StateNavigating, StateAuthenticating, StateFormFilling,
		StateCaptchaPending, StateSubmitting, StateRetrying,
		StateConfirmed, StateFailed, StateAbandoned:
		return st, nil
	}
	return "", fmt.Errorf("unknown workflow state %q", s)
}

// CanTransition returns true when moving from → to is permitted by the
// state machine.
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true when the state has no outgoing transitions.
func IsTerminal(s State) bool {
	return len(validTransitions[s]) == 0
}

// nextStep returns the step that follows s on the happy path, or CONFIRMED
// after the last one.
func nextStep(s State) State {
	for i, step := range stepOrder {
		if step == s {
			if i+1 < len(stepOrder) {
				return stepOrder[i+1]
			}
			return StateConfirmed
		}
	}
	return StateConfirmed
}

// defaultErrorKind maps an in-flight step to the failure class reported when
// a step runner returns an unclassified error.
func defaultErrorKind(s State) ErrorKind {
	switch s {
	case StateNavigating:
		return ErrorKindFetch
	case StateAuthenticating:
		return ErrorKindAuth
	case StateFormFilling:
		return ErrorKindValidation
	case StateSubmitting:
		return ErrorKindSubmission
	}
	return ErrorKindSubmission
}
