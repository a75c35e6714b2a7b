// Package affirm is the charges-v2 implementation of the charge.ProviderAPI
// adapter: authenticated POSTs against the financing provider's charge
// creation and capture endpoints.
package affirm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/onepointmotors/checkout-api/internal/domain/charge"
)

// Provider endpoints. The base URL is selected by the sandbox/production
// environment flag at configuration time.
const (
	ProdBaseURL    = "https://api.affirm.com"
	SandboxBaseURL = "https://sandbox.affirm.com"

	ProdCDNBaseURL    = "https://cdn1.affirm.com"
	SandboxCDNBaseURL = "https://cdn1-sandbox.affirm.com"

	chargesPath = "/api/v2/charges"

	// ScriptPath is the provider's browser SDK script, relative to the
	// matching CDN host for the environment.
	ScriptPath = "/js/v2/affirm.js"
)

// defaultMaxBodyBytes bounds how much of a provider response body is retained
// for diagnostics and logging.
const defaultMaxBodyBytes = 8 << 10

// BaseURL maps an environment name to the provider base URL. "sandbox"
// selects the sandbox host; anything else (including empty) is production.
func BaseURL(env string) string {
	if strings.ToLower(strings.TrimSpace(env)) == "sandbox" {
		return SandboxBaseURL
	}
	return ProdBaseURL
}

// CDNBaseURL maps an environment name to the CDN host serving the browser SDK.
func CDNBaseURL(env string) string {
	if strings.ToLower(strings.TrimSpace(env)) == "sandbox" {
		return SandboxCDNBaseURL
	}
	return ProdCDNBaseURL
}

// Config holds the provider connection settings. The key pair is held only
// server-side and is never logged.
type Config struct {
	BaseURL    string
	PublicKey  string
	PrivateKey string

	// Timeout bounds each provider call. A timeout is treated as a
	// non-success for that phase. Defaults to 30s.
	Timeout time.Duration

	// MaxBodyBytes bounds retained response bodies. Defaults to 8 KiB.
	MaxBodyBytes int64
}

// Client is the charges-v2 provider client.
type Client struct {
	cfg  Config
	http *http.Client
}

// Compile-time check: Client is the provider adapter implementation.
var _ charge.ProviderAPI = (*Client)(nil)

// NewClient creates a Client. Missing credentials are not an error here:
// they surface as a *charge.CredentialError on the first call, so a
// misconfigured deployment fails per-request instead of crash-looping.
func NewClient(cfg Config, hc *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

// HasCredentials reports whether both keys are configured. Used by the
// diagnostic side-channel; never exposes the values.
func (c *Client) HasCredentials() bool {
	return c.cfg.PublicKey != "" && c.cfg.PrivateKey != ""
}

// Endpoints returns the target endpoints for the diagnostic side-channel.
func (c *Client) Endpoints() (authorize, capture string) {
	return c.cfg.BaseURL + chargesPath, c.cfg.BaseURL + chargesPath + "/{id}/capture"
}

// authorization builds the Basic auth header from the key pair. Encoded per
// call: it is cheap, and avoids serving a stale credential after a key
// rotation.
func (c *Client) authorization() (string, error) {
	if !c.HasCredentials() {
		return "", &charge.CredentialError{Msg: "Missing AFFIRM_PUBLIC_KEY or AFFIRM_PRIVATE_KEY env vars"}
	}
	raw := c.cfg.PublicKey + ":" + c.cfg.PrivateKey
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw)), nil
}

// CreateCharge exchanges a checkout token for a charge record (phase 1).
// Non-2xx responses come back as *charge.StatusError with the provider body
// verbatim. A missing id in a 2xx body is returned as an empty ID for the
// orchestrator to judge.
func (c *Client) CreateCharge(ctx context.Context, checkoutToken string) (*charge.ProviderCharge, error) {
	status, body, err := c.do(ctx, http.MethodPost, chargesPath, map[string]string{
		"checkout_token": checkoutToken,
	})
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &charge.StatusError{Status: status, Body: body}
	}
	return &charge.ProviderCharge{ID: extractChargeID(body), Raw: body}, nil
}

// CaptureCharge captures funds against an authorized charge (phase 2).
func (c *Client) CaptureCharge(ctx context.Context, chargeID string, req charge.CaptureRequest) (*charge.ProviderResult, error) {
	payload := map[string]any{
		"order_id": req.OrderID,
		"amount":   req.AmountMinor,
	}
	if req.ShippingCarrier != "" {
		payload["shipping_carrier"] = req.ShippingCarrier
	}
	if req.ShippingConfirmation != "" {
		payload["shipping_confirmation"] = req.ShippingConfirmation
	}

	path := chargesPath + "/" + url.PathEscape(chargeID) + "/capture"
	status, body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &charge.StatusError{Status: status, Body: body}
	}
	return &charge.ProviderResult{Raw: body}, nil
}

// Ping issues one authenticated read against the charges endpoint. It
// validates the credential without consuming a checkout token: 401/403 means
// the key pair is bad, any other response means we reached the provider.
func (c *Client) Ping(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodGet, chargesPath+"?limit=1", nil)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &charge.StatusError{Status: status, Body: body}
	}
	return nil
}

// do performs one authenticated provider call and returns the status and the
// size-bounded, JSON-normalized body. The credential never reaches the log.
func (c *Client) do(ctx context.Context, method, path string, payload any) (int, json.RawMessage, error) {
	auth, err := c.authorization()
	if err != nil {
		return 0, nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, errors.Wrap(err, "encode request")
		}
		reqBody = bytes.NewReader(buf)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return 0, nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "provider call")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return 0, nil, errors.Wrap(err, "read response")
	}
	body := normalizeBody(raw)

	zctx.From(ctx).Info("provider response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", body),
	)
	return resp.StatusCode, body, nil
}

// normalizeBody guarantees the retained body is valid JSON: empty bodies
// become null, non-JSON text is wrapped under a "raw" key.
func normalizeBody(b []byte) json.RawMessage {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(b) {
		return b
	}
	wrapped, err := json.Marshal(map[string]string{"raw": string(b)})
	if err != nil {
		return json.RawMessage(`{"raw":"[unserializable]"}`)
	}
	return wrapped
}
