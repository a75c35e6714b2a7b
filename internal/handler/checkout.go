package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/onepointmotors/checkout-api/internal/domain/cart"
	"github.com/onepointmotors/checkout-api/internal/domain/checkout"
)

// checkoutRequest opens a checkout session. Items come either inline or from
// the cart store by id; inline items win when both are present.
type checkoutRequest struct {
	CartID   string             `json:"cart_id"`
	Items    []cart.RawItem     `json:"items"`
	Shipping float64            `json:"shipping"`
	Tax      float64            `json:"tax"`
	Customer *checkout.Customer `json:"customer"`
}

type checkoutResponse struct {
	OK         bool              `json:"ok"`
	OrderID    string            `json:"order_id"`
	TotalCents int64             `json:"total_cents"`
	ScriptURL  string            `json:"script_url"`
	PublicKey  string            `json:"public_key,omitempty"`
	Checkout   *checkout.Payload `json:"checkout"`
}

// OpenCheckout builds the lender checkout payload from the cart and registers
// a session for it. The client hands the returned payload to the lender's
// browser SDK and reports the terminal event back via CheckoutEvent.
func (h *Handler) OpenCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: rawString("invalid JSON body")})
		return
	}

	raw := req.Items
	if len(raw) == 0 && req.CartID != "" {
		var err error
		raw, err = h.carts.Get(r.Context(), req.CartID)
		if err != nil {
			if errors.Is(err, cart.ErrCartNotFound) {
				writeJSON(w, r, http.StatusNotFound, errorResponse{Error: rawString("cart not found")})
				return
			}
			zctx.From(r.Context()).Error("load cart", zap.Error(err))
			writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: rawString("server_error")})
			return
		}
	}

	snap, err := cart.BuildSnapshot(raw, req.Shipping, req.Tax, h.cfg.MinTotalMinor)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}

	payload, err := h.builder.Build(snap, req.Customer, h.cfg.MerchantOrigin)
	if err != nil {
		zctx.From(r.Context()).Error("build checkout payload", zap.Error(err))
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: rawString("server_error")})
		return
	}

	// The lender script must be reachable before a session is offered;
	// otherwise the client would open a modal that can never render.
	sdk, err := h.sdk.Load(r.Context())
	if err != nil {
		zctx.From(r.Context()).Warn("provider sdk unavailable", zap.Error(err))
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: rawString("provider sdk unavailable")})
		return
	}

	s := h.sessions.Open(payload)

	writeJSON(w, r, http.StatusOK, checkoutResponse{
		OK:         true,
		OrderID:    s.OrderID,
		TotalCents: payload.Total,
		ScriptURL:  sdk.ScriptURL,
		PublicKey:  sdk.PublicKey,
		Checkout:   payload,
	})
}

func (h *Handler) writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	var below *cart.BelowMinimumError
	switch {
	case errors.Is(err, cart.ErrEmptyCart):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: rawString("cart has no valid items")})
	case errors.As(err, &below):
		writeJSON(w, r, http.StatusUnprocessableEntity, map[string]any{
			"ok":            false,
			"error":         "total below financeable minimum",
			"total_cents":   below.TotalMinor,
			"minimum_cents": below.MinimumMinor,
		})
	default:
		zctx.From(r.Context()).Error("build snapshot", zap.Error(err))
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: rawString("server_error")})
	}
}

// eventRequest reports the single terminal event of a checkout session.
type eventRequest struct {
	Event         checkout.OutcomeKind `json:"event"`
	CheckoutToken string               `json:"checkout_token"`
	Reason        string               `json:"reason"`
	Fields        []string             `json:"fields"`
}

// CheckoutEvent delivers the terminal outcome for the session in the path.
// Exactly one terminal event is accepted per session.
func (h *Handler) CheckoutEvent(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("order_id")

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: rawString("invalid JSON body")})
		return
	}

	switch req.Event {
	case checkout.OutcomeSuccess, checkout.OutcomeFail, checkout.OutcomeValidationError, checkout.OutcomeCancel:
	default:
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: rawString("unknown event")})
		return
	}

	err := h.sessions.Resolve(orderID, checkout.Outcome{
		Kind:   req.Event,
		Token:  req.CheckoutToken,
		Reason: req.Reason,
		Fields: req.Fields,
	})
	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, map[string]any{"ok": true, "order_id": orderID})
	case errors.Is(err, checkout.ErrSessionNotFound):
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: rawString("checkout session not found")})
	case errors.Is(err, checkout.ErrSessionResolved):
		writeJSON(w, r, http.StatusConflict, errorResponse{Error: rawString("checkout session already resolved")})
	case errors.Is(err, checkout.ErrTokenRequired):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: rawString("success event requires checkout_token")})
	default:
		zctx.From(r.Context()).Error("resolve session", zap.Error(err))
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: rawString("server_error")})
	}
}

// ReopenCheckout starts a fresh lender interaction from a failed or cancelled
// session: the retained payload under a fresh order id, never a carried-over
// token.
func (h *Handler) ReopenCheckout(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("order_id")

	s, err := h.sessions.Reopen(orderID)
	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, checkoutResponse{
			OK:         true,
			OrderID:    s.OrderID,
			TotalCents: s.TotalMinor,
			Checkout:   s.Payload(),
		})
	case errors.Is(err, checkout.ErrSessionNotFound):
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: rawString("checkout session not found")})
	case errors.Is(err, checkout.ErrSessionOpen), errors.Is(err, checkout.ErrNotReopenable):
		writeJSON(w, r, http.StatusConflict, errorResponse{Error: rawString(err.Error())})
	default:
		zctx.From(r.Context()).Error("reopen session", zap.Error(err))
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: rawString("server_error")})
	}
}
