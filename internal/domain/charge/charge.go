// Package charge implements the authorization-capture orchestration against
// the financing provider: a two-phase remote protocol that exchanges a
// client-obtained checkout token for an authorized charge and optionally
// captures funds against it. It runs only in a trusted execution context,
// since it carries the provider's private credential.
package charge

import (
	"context"
	"encoding/json"
)

// State names a position in the orchestration state machine.
type State string

// States. Authorize strictly precedes capture; the failure states record
// which in-flight phase was abandoned.
const (
	StateIdle            State = "idle"
	StateAuthorizing     State = "authorizing"
	StateAuthorized      State = "authorized"
	StateCapturing       State = "capturing"
	StateCaptured        State = "captured"
	StateAuthorizeFailed State = "authorize_failed"
	StateCaptureFailed   State = "capture_failed"
	StateMissingChargeID State = "missing_charge_id"
)

// Step identifies the phase an error was raised in, so callers can tell
// "never charged" from "charged but not captured".
type Step string

// Steps.
const (
	StepValidate  Step = "validate"
	StepAuthorize Step = "authorize"
	StepCapture   Step = "capture"
)

// Request is one orchestration attempt. Each invocation is a single attempt;
// deduplication of repeated tokens is the provider's concern, never assumed
// here.
type Request struct {
	CheckoutToken        string
	OrderID              string
	AmountMinor          int64
	Capture              bool
	ShippingCarrier      string
	ShippingConfirmation string
}

// Result is a terminal success: either authorized-only or authorized and
// captured. It is held only for the duration of the call; the provider is
// the system of record.
type Result struct {
	State         State
	ChargeID      string
	Authorized    bool
	Captured      bool
	AuthorizeBody json.RawMessage
	CaptureBody   json.RawMessage
}

// ProviderCharge is the provider's response to a successful authorize call.
// ID may be empty when the provider violates its documented response shape;
// the orchestrator treats that as a contract violation, not a soft failure.
type ProviderCharge struct {
	ID  string
	Raw json.RawMessage
}

// ProviderResult is an opaque successful provider response.
type ProviderResult struct {
	Raw json.RawMessage
}

// CaptureRequest carries the capture-phase parameters.
type CaptureRequest struct {
	OrderID              string
	AmountMinor          int64
	ShippingCarrier      string
	ShippingConfirmation string
}

// ProviderAPI is the versioned provider adapter: one interface, one
// implementation matching the provider's current documented contract.
// Implementations signal non-2xx responses with *StatusError and
// misconfiguration with *CredentialError.
type ProviderAPI interface {
	CreateCharge(ctx context.Context, checkoutToken string) (*ProviderCharge, error)
	CaptureCharge(ctx context.Context, chargeID string, req CaptureRequest) (*ProviderResult, error)

	// Ping makes one lightweight authenticated read call to validate
	// credentials without consuming a checkout token.
	Ping(ctx context.Context) error
}
