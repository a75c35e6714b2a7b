package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/onepointmotors/checkout-api/internal/domain/charge"
)

// authorizeRequest is the client-facing shape of one orchestration attempt.
// The diag and ping flags select the side-channels and short-circuit the
// payment flow entirely.
type authorizeRequest struct {
	Diag bool `json:"diag"`
	Ping bool `json:"ping"`

	CheckoutToken        string `json:"checkout_token"`
	OrderID              string `json:"order_id"`
	AmountCents          int64  `json:"amount_cents"`
	Capture              *bool  `json:"capture"`
	ShippingCarrier      string `json:"shipping_carrier"`
	ShippingConfirmation string `json:"shipping_confirmation"`
}

type authorizeResponse struct {
	OK         bool            `json:"ok"`
	State      charge.State    `json:"state,omitempty"`
	ChargeID   string          `json:"charge_id,omitempty"`
	Authorized bool            `json:"authorized"`
	Captured   bool            `json:"captured"`
	Authorize  json.RawMessage `json:"authorize,omitempty"`
	Capture    json.RawMessage `json:"capture,omitempty"`
}

// errorResponse is the uniform failure envelope. Error is either a plain
// message string or the provider's error body verbatim.
type errorResponse struct {
	OK       bool            `json:"ok"`
	Step     charge.Step     `json:"step,omitempty"`
	Error    json.RawMessage `json:"error,omitempty"`
	ChargeID string          `json:"charge_id,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
	Name     string          `json:"name,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Authorize runs one authorize→capture attempt against the lender, or one of
// the diagnostic side-channels when the diag or ping flag is set.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: rawString("invalid JSON body")})
		return
	}

	switch {
	case req.Diag:
		h.serveDiag(w, r)
		return
	case req.Ping:
		h.servePing(w, r)
		return
	}

	capture := true
	if req.Capture != nil {
		capture = *req.Capture
	}

	res, err := h.charges.Execute(r.Context(), charge.Request{
		CheckoutToken:        req.CheckoutToken,
		OrderID:              req.OrderID,
		AmountMinor:          req.AmountCents,
		Capture:              capture,
		ShippingCarrier:      req.ShippingCarrier,
		ShippingConfirmation: req.ShippingConfirmation,
	})
	if err != nil {
		h.writeChargeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, authorizeResponse{
		OK:         true,
		State:      res.State,
		ChargeID:   res.ChargeID,
		Authorized: res.Authorized,
		Captured:   res.Captured,
		Authorize:  res.AuthorizeBody,
		Capture:    res.CaptureBody,
	})
}

// writeChargeError reconciles every orchestration failure into the uniform
// envelope. The status code and shape depend only on the failure class, never
// on where in the handler it surfaced.
func (h *Handler) writeChargeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *charge.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{
			Step:  charge.StepValidate,
			Error: rawString(vErr.Msg),
		})
		return
	}

	var credErr *charge.CredentialError
	if errors.As(err, &credErr) {
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{
			Error: rawString(credErr.Msg),
		})
		return
	}

	var rej *charge.RejectionError
	if errors.As(err, &rej) {
		// The lender's status and error body pass through verbatim so the
		// client sees exactly what the lender said.
		writeJSON(w, r, rej.Status, errorResponse{
			Step:     rej.Step,
			Error:    rej.Body,
			ChargeID: rej.ChargeID,
		})
		return
	}

	var con *charge.ContractError
	if errors.As(err, &con) {
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{
			Step:  charge.StepAuthorize,
			Error: rawString("Authorize succeeded but response missing charge id"),
			Raw:   con.Body,
		})
		return
	}

	var tErr *charge.TransportError
	if errors.As(err, &tErr) {
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{
			Step:     tErr.Step,
			ChargeID: tErr.ChargeID,
			Error:    rawString("server_error"),
			Name:     "TransportError",
			Message:  tErr.Error(),
		})
		return
	}

	zctx.From(r.Context()).Error("unhandled charge error", zap.Error(err))
	writeJSON(w, r, http.StatusInternalServerError, errorResponse{
		Error:   rawString("server_error"),
		Name:    fmt.Sprintf("%T", err),
		Message: err.Error(),
	})
}

// serveDiag reports the lender wiring without touching the network: target
// endpoints and credential presence. Credential values are never included.
func (h *Handler) serveDiag(w http.ResponseWriter, r *http.Request) {
	authorizeURL, captureURL := h.diag.Endpoints()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"ok":              true,
		"diag":            true,
		"env":             h.cfg.Environment,
		"has_credentials": h.diag.HasCredentials(),
		"authorize_url":   authorizeURL,
		"capture_url":     captureURL,
	})
}

// servePing makes one authenticated read call against the lender to validate
// credentials without consuming a checkout token.
func (h *Handler) servePing(w http.ResponseWriter, r *http.Request) {
	err := h.diag.Ping(r.Context())
	if err == nil {
		writeJSON(w, r, http.StatusOK, map[string]any{"ok": true, "ping": true})
		return
	}

	var credErr *charge.CredentialError
	if errors.As(err, &credErr) {
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: rawString(credErr.Msg)})
		return
	}

	var stErr *charge.StatusError
	if errors.As(err, &stErr) {
		writeJSON(w, r, stErr.Status, errorResponse{Error: stErr.Body})
		return
	}

	zctx.From(r.Context()).Warn("provider ping failed", zap.Error(err))
	writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: rawString("provider unreachable")})
}
