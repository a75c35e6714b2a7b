// Package handler exposes the checkout API over HTTP and reconciles every
// orchestration outcome into the uniform client-facing envelope.
package handler

import (
	"context"
	"net/http"

	"github.com/onepointmotors/checkout-api/internal/cardpay"
	"github.com/onepointmotors/checkout-api/internal/domain/cart"
	"github.com/onepointmotors/checkout-api/internal/domain/charge"
	"github.com/onepointmotors/checkout-api/internal/domain/checkout"
)

// ProviderDiag is the non-sensitive view of the lender client used by the
// diagnostic side-channel: target endpoints and credential presence, never
// credential values.
type ProviderDiag interface {
	HasCredentials() bool
	Endpoints() (authorize, capture string)
	Ping(ctx context.Context) error
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// MerchantOrigin is the storefront's absolute origin, used to resolve
	// relative item URLs and as the fallback for hosted-session redirects.
	MerchantOrigin string
	// Environment is the lender environment name echoed by diag.
	Environment string
	// MinTotalMinor is the lender's minimum financeable total in minor units.
	MinTotalMinor int64
}

// Handler implements the checkout API endpoints, delegating business logic to
// the charge service, payload builder, and session registry.
type Handler struct {
	cfg Config

	charges  *charge.Service
	diag     ProviderDiag
	builder  *checkout.Builder
	sessions *checkout.Registry
	sdk      *checkout.SDKLoader
	carts    cart.Store
	cards    *cardpay.Client
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	charges *charge.Service,
	diag ProviderDiag,
	builder *checkout.Builder,
	sessions *checkout.Registry,
	sdk *checkout.SDKLoader,
	carts cart.Store,
	cards *cardpay.Client,
) *Handler {
	return &Handler{
		cfg:      cfg,
		charges:  charges,
		diag:     diag,
		builder:  builder,
		sessions: sessions,
		sdk:      sdk,
		carts:    carts,
		cards:    cards,
	}
}

// Routes registers the API endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/authorize", h.Authorize)
	mux.HandleFunc("POST /api/checkout", h.OpenCheckout)
	mux.HandleFunc("POST /api/checkout/{order_id}/event", h.CheckoutEvent)
	mux.HandleFunc("POST /api/checkout/{order_id}/reopen", h.ReopenCheckout)
	mux.HandleFunc("POST /api/card-checkout", h.CardCheckout)
}
