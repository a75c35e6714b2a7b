// Package cardpay creates hosted card-payment sessions: one authenticated
// call that turns a line-item list into a redirect URL. No multi-step state
// machine lives here; the processor's hosted page owns the rest of the flow.
package cardpay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// DefaultAPIBase is the card processor's API host.
const DefaultAPIBase = "https://api.stripe.com"

const sessionsPath = "/v1/checkout/sessions"

// ErrMissingSecretKey indicates the processor credential is not configured.
var ErrMissingSecretKey = errors.New("Missing STRIPE_SECRET_KEY env var")

// APIError is a non-2xx response from the processor.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("card processor returned status %d: %s", e.Status, e.Message)
}

// Config holds processor connection settings.
type Config struct {
	APIBase   string
	SecretKey string
	Timeout   time.Duration
}

// LineItem is one normalized line of a card checkout.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int
}

// SessionParams are the inputs to session creation.
type SessionParams struct {
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
}

// Session is the created hosted session: the URL the buyer is redirected to.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client creates hosted checkout sessions.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a Client. A missing secret key surfaces per-request as
// ErrMissingSecretKey rather than failing startup.
func NewClient(cfg Config, hc *http.Client) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

// Configured reports whether the secret key is present.
func (c *Client) Configured() bool { return c.cfg.SecretKey != "" }

// CreateSession creates a hosted payment session and returns its redirect
// URL. One shot: there is nothing to reconcile afterwards from this side.
func (c *Client) CreateSession(ctx context.Context, p SessionParams) (*Session, error) {
	if !c.Configured() {
		return nil, ErrMissingSecretKey
	}
	if len(p.LineItems) == 0 {
		return nil, errors.New("at least one line item required")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	for i, m := range []string{"card", "afterpay_clearpay", "klarna", "zip"} {
		form.Set(fmt.Sprintf("payment_method_types[%d]", i), m)
	}
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	for i, li := range p.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", "usd")
		form.Set(prefix+"[price_data][product_data][name]", li.Name)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(li.UnitAmount, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(li.Quantity))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIBase+sessionsPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "processor call")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	zctx.From(ctx).Info("card session response", zap.Int("status", resp.StatusCode))

	if resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, body)
	}

	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	if s.URL == "" {
		return nil, errors.New("session created but missing redirect url")
	}
	return &s, nil
}

// decodeAPIError pulls message/code out of the processor's error envelope,
// falling back to the raw body.
func decodeAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{Status: status, Message: envelope.Error.Message, Code: envelope.Error.Code}
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
}
