package model

// SessionState is the lifecycle state of a selection session.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateResolving  SessionState = "resolving"
	SessionStateReady      SessionState = "ready"
	SessionStateConfirming SessionState = "confirming"
)

// Busy reports whether a store call is outstanding in this state.
func (s SessionState) Busy() bool {
	return s == SessionStateResolving || s == SessionStateConfirming
}

// Outcome labels used for metrics and audit events.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeValidation Outcome = "validation"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeTransient  Outcome = "transient"
	OutcomeBusy       Outcome = "busy"
	OutcomeNoop       Outcome = "noop"
)
