package charge

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Service drives the two-phase authorize→capture protocol. Each Execute call
// is independent: no shared mutable state, no automatic retries, no
// deduplication across attempts.
type Service struct {
	provider ProviderAPI
}

// NewService creates a Service on the given provider adapter.
func NewService(provider ProviderAPI) *Service {
	return &Service{provider: provider}
}

// validate is the synchronous gate: invalid input is rejected here and no
// remote call is ever made for it.
func (r Request) validate() error {
	if strings.TrimSpace(r.CheckoutToken) == "" {
		return ErrMissingToken
	}
	if r.Capture {
		if strings.TrimSpace(r.OrderID) == "" {
			return ErrMissingOrderID
		}
		if r.AmountMinor <= 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}

// Execute runs one orchestration attempt to completion.
//
// Phase 1 exchanges the checkout token for a charge id. Phase 2, only when
// requested and only after phase 1's response has been observed, captures
// funds against that id. A capture-phase failure leaves the charge
// authorized-but-uncaptured on the provider side; the returned
// *RejectionError carries the charge id for out-of-band reconciliation.
func (s *Service) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	lg := zctx.From(ctx).With(zap.String("order_id", req.OrderID))

	lg.Info("authorizing charge")
	ch, err := s.provider.CreateCharge(ctx, strings.TrimSpace(req.CheckoutToken))
	if err != nil {
		return nil, phaseError(StepAuthorize, "", err)
	}

	if ch.ID == "" {
		// The provider broke its documented response shape: there may be an
		// un-tracked charge on its side. Surfaced distinctly from a normal
		// authorize failure.
		lg.Error("authorize response missing charge id")
		return nil, &ContractError{Body: ch.Raw}
	}

	lg = lg.With(zap.String("charge_id", ch.ID))
	lg.Info("charge authorized")

	if !req.Capture {
		return &Result{
			State:         StateAuthorized,
			ChargeID:      ch.ID,
			Authorized:    true,
			AuthorizeBody: ch.Raw,
		}, nil
	}

	lg.Info("capturing charge", zap.Int64("amount_cents", req.AmountMinor))
	cap, err := s.provider.CaptureCharge(ctx, ch.ID, CaptureRequest{
		OrderID:              strings.TrimSpace(req.OrderID),
		AmountMinor:          req.AmountMinor,
		ShippingCarrier:      req.ShippingCarrier,
		ShippingConfirmation: req.ShippingConfirmation,
	})
	if err != nil {
		lg.Error("capture failed, charge remains authorized", zap.Error(err))
		return nil, phaseError(StepCapture, ch.ID, err)
	}

	lg.Info("charge captured")
	return &Result{
		State:         StateCaptured,
		ChargeID:      ch.ID,
		Authorized:    true,
		Captured:      true,
		AuthorizeBody: ch.Raw,
		CaptureBody:   cap.Raw,
	}, nil
}

// phaseError attributes an adapter error to the phase it occurred in.
// Credential errors pass through unchanged; non-2xx statuses become
// rejections; anything else is a transport failure.
func phaseError(step Step, chargeID string, err error) error {
	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return credErr
	}

	var stErr *StatusError
	if errors.As(err, &stErr) {
		return &RejectionError{
			Step:     step,
			Status:   stErr.Status,
			Body:     stErr.Body,
			ChargeID: chargeID,
		}
	}

	return &TransportError{Step: step, ChargeID: chargeID, Err: err}
}
