package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/onepointmotors/checkout-api/internal/cardpay"
	"github.com/onepointmotors/checkout-api/internal/domain/money"
)

// minCardUnitMinor is the processor's smallest chargeable unit amount.
const minCardUnitMinor = 50

type cardCheckoutRequest struct {
	Items []struct {
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Quantity int     `json:"qty"`
	} `json:"items"`
}

// CardCheckout creates a hosted card-payment session for the cart and returns
// the redirect URL. The card rail has no authorize/capture split on this side;
// the processor's hosted page owns the flow after the redirect.
func (h *Handler) CardCheckout(w http.ResponseWriter, r *http.Request) {
	var req cardCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: rawString("invalid JSON body")})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: rawString("items array required")})
		return
	}

	lines := make([]cardpay.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		unit := money.ToMinorUnits(it.Price)
		if unit <= 0 {
			continue
		}
		if unit < minCardUnitMinor {
			unit = minCardUnitMinor
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		name := strings.TrimSpace(it.Name)
		if name == "" {
			name = "Item"
		}
		lines = append(lines, cardpay.LineItem{
			Name:       truncateName(name, 120),
			UnitAmount: unit,
			Quantity:   qty,
		})
	}
	if len(lines) == 0 {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: rawString("no_valid_line_items")})
		return
	}

	origin := requestOrigin(r, h.cfg.MerchantOrigin)
	s, err := h.cards.CreateSession(r.Context(), cardpay.SessionParams{
		LineItems:  lines,
		SuccessURL: origin + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  origin + "/checkout/cancel",
	})
	if err != nil {
		h.writeCardError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"ok":         true,
		"session_id": s.ID,
		"url":        s.URL,
	})
}

func (h *Handler) writeCardError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, cardpay.ErrMissingSecretKey) {
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: rawString(err.Error())})
		return
	}

	var apiErr *cardpay.APIError
	if errors.As(err, &apiErr) {
		writeJSON(w, r, http.StatusBadGateway, map[string]any{
			"ok":    false,
			"error": apiErr.Message,
			"code":  apiErr.Code,
		})
		return
	}

	zctx.From(r.Context()).Error("create card session", zap.Error(err))
	writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: rawString("server_error")})
}

// requestOrigin reconstructs the caller's origin from proxy headers, falling
// back to the configured merchant origin.
func requestOrigin(r *http.Request, fallback string) string {
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	if host == "" {
		return strings.TrimSuffix(fallback, "/")
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "https"
	}
	return proto + "://" + host
}

func truncateName(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
