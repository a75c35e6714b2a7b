package charge

import (
	"encoding/json"
	"fmt"
)

// ValidationError is a local, synchronous rejection of bad input. It is
// raised before any remote call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// The validation gate's rejections. Messages are surfaced to the client
// verbatim.
var (
	ErrMissingToken   = &ValidationError{Msg: "Missing checkout_token"}
	ErrMissingOrderID = &ValidationError{Msg: "Missing order_id (required when capture=true)"}
	ErrInvalidAmount  = &ValidationError{Msg: "amount_cents required (positive integer) when capture=true"}
)

// CredentialError indicates the provider credential is not configured. A
// server misconfiguration, never a client problem.
type CredentialError struct {
	Msg string
}

func (e *CredentialError) Error() string { return e.Msg }

// StatusError is the provider adapter's signal for a non-2xx response. Body
// is the provider's error body verbatim (normalized to valid JSON), retained
// for diagnosability.
type StatusError struct {
	Status int
	Body   json.RawMessage
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.Status)
}

// RejectionError is a provider rejection at a known phase. When Step is
// StepCapture the charge is authorized but uncaptured on the provider side:
// a known terminal ambiguous state, reported with the ChargeID so an operator
// can capture or void out-of-band. No automatic compensating action is taken.
type RejectionError struct {
	Step     Step
	Status   int
	Body     json.RawMessage
	ChargeID string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("provider rejected %s with status %d", e.Step, e.Status)
}

// ContractError indicates the provider responded 2xx but violated its
// documented response shape (no charge id). The most severe class: it implies
// an untracked financial event, and is never retried.
type ContractError struct {
	Body json.RawMessage
}

func (e *ContractError) Error() string {
	return "authorize succeeded but response is missing the charge id"
}

// TransportError is a network-level failure at a known phase. ChargeID is set
// when the failure happened after a successful authorize, since the outcome
// of the in-flight capture is then unknown.
type TransportError struct {
	Step     Step
	ChargeID string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport failure: %v", e.Step, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
