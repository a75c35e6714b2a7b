// Package app wires the checkout service together: configuration, provider
// clients, domain services, HTTP surface, and lifecycle.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/onepointmotors/checkout-api/internal/affirm"
	"github.com/onepointmotors/checkout-api/internal/cardpay"
	"github.com/onepointmotors/checkout-api/internal/domain/cart"
	"github.com/onepointmotors/checkout-api/internal/domain/charge"
	"github.com/onepointmotors/checkout-api/internal/domain/checkout"
	"github.com/onepointmotors/checkout-api/internal/handler"
	"github.com/onepointmotors/checkout-api/pkg/health"
	"github.com/onepointmotors/checkout-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("lender_env", cfg.Affirm.Env))

	// Lender client. Missing credentials surface per-request, not at startup.
	lender := affirm.NewClient(affirm.Config{
		BaseURL:    affirm.BaseURL(cfg.Affirm.Env),
		PublicKey:  cfg.Affirm.PublicKey,
		PrivateKey: cfg.Affirm.PrivateKey,
		Timeout:    cfg.Affirm.Timeout,
	}, nil)

	// Card processor client.
	cards := cardpay.NewClient(cardpay.Config{
		APIBase:   cfg.Card.APIBase,
		SecretKey: cfg.Card.SecretKey,
	}, nil)

	// Checkout domain: payload builder, session registry, SDK loader.
	builder := checkout.NewBuilder(checkout.BuilderConfig{
		MerchantName: cfg.Merchant.Name,
		ConfirmPath:  cfg.Merchant.ConfirmPath,
		CancelPath:   cfg.Merchant.CancelPath,
		Fallback: checkout.FallbackIdentity{
			FirstName: cfg.Merchant.FallbackFirstName,
			LastName:  cfg.Merchant.FallbackLastName,
			Address: checkout.Address{
				Line1:   cfg.Merchant.FallbackLine1,
				City:    cfg.Merchant.FallbackCity,
				State:   cfg.Merchant.FallbackState,
				Zipcode: cfg.Merchant.FallbackZip,
				Country: "US",
			},
		},
	})

	sessions := checkout.NewRegistry(cfg.Session.TTL)
	go sessions.Janitor(ctx, cfg.Session.SweepInterval)

	sdk := checkout.NewSDKLoader(
		affirm.CDNBaseURL(cfg.Affirm.Env)+affirm.ScriptPath,
		cfg.Affirm.PublicKey,
		nil,
	)

	carts := cart.NewMemoryStore()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddReadinessCheck("lender", 5*time.Second, func(ctx context.Context) error {
		if !lender.HasCredentials() {
			// Misconfiguration is not un-readiness; the API still serves
			// diag and card traffic.
			return nil
		}
		return lender.Ping(ctx)
	})
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			MerchantOrigin: cfg.Merchant.Origin,
			Environment:    cfg.Affirm.Env,
			MinTotalMinor:  cfg.MinTotalCents,
		},
		charge.NewService(lender),
		lender,
		builder,
		sessions,
		sdk,
		carts,
		cards,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(mux)

	instrumented := otelhttp.NewHandler(mux, "checkout-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
