package charge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock provider ---

type mockProvider struct {
	createCalls  int
	captureCalls int

	charge     *ProviderCharge
	createErr  error
	captured   *ProviderResult
	captureErr error

	lastToken    string
	lastChargeID string
	lastCapture  CaptureRequest
}

func (m *mockProvider) CreateCharge(_ context.Context, token string) (*ProviderCharge, error) {
	m.createCalls++
	m.lastToken = token
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.charge, nil
}

func (m *mockProvider) CaptureCharge(_ context.Context, chargeID string, req CaptureRequest) (*ProviderResult, error) {
	m.captureCalls++
	m.lastChargeID = chargeID
	m.lastCapture = req
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	return m.captured, nil
}

func (m *mockProvider) Ping(_ context.Context) error { return nil }

func authorizedCharge(id string) *ProviderCharge {
	return &ProviderCharge{ID: id, Raw: json.RawMessage(`{"id":"` + id + `"}`)}
}

func captureRequest() Request {
	return Request{
		CheckoutToken: "tok_abc",
		OrderID:       "ORDER-1",
		AmountMinor:   150000,
		Capture:       true,
	}
}

// --- Validation gate ---

func TestExecute_ValidationGate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr *ValidationError
	}{
		{"blank token", func(r *Request) { r.CheckoutToken = "  " }, ErrMissingToken},
		{"missing order id with capture", func(r *Request) { r.OrderID = "" }, ErrMissingOrderID},
		{"zero amount with capture", func(r *Request) { r.AmountMinor = 0 }, ErrInvalidAmount},
		{"negative amount with capture", func(r *Request) { r.AmountMinor = -5 }, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{}
			svc := NewService(provider)

			req := captureRequest()
			tt.mutate(&req)

			_, err := svc.Execute(context.Background(), req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, provider.createCalls, "no remote call on invalid input")
			assert.Zero(t, provider.captureCalls)
		})
	}
}

func TestExecute_NoOrderIDNeededWithoutCapture(t *testing.T) {
	provider := &mockProvider{charge: authorizedCharge("chg_1")}
	svc := NewService(provider)

	res, err := svc.Execute(context.Background(), Request{CheckoutToken: "tok", Capture: false})
	require.NoError(t, err)
	assert.Equal(t, StateAuthorized, res.State)
}

// --- Phase 1 ---

func TestExecute_AuthorizeRejection_NoCaptureIssued(t *testing.T) {
	provider := &mockProvider{
		createErr: &StatusError{Status: 402, Body: json.RawMessage(`{"type":"invalid_request"}`)},
	}
	svc := NewService(provider)

	_, err := svc.Execute(context.Background(), captureRequest())

	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, StepAuthorize, rej.Step)
	assert.Equal(t, 402, rej.Status)
	assert.Empty(t, rej.ChargeID)
	assert.JSONEq(t, `{"type":"invalid_request"}`, string(rej.Body))

	assert.Equal(t, 1, provider.createCalls)
	assert.Zero(t, provider.captureCalls, "capture is never issued after a failed authorize")
}

func TestExecute_MissingChargeID_DistinctFromRejection(t *testing.T) {
	provider := &mockProvider{
		charge: &ProviderCharge{ID: "", Raw: json.RawMessage(`{"status":"created"}`)},
	}
	svc := NewService(provider)

	_, err := svc.Execute(context.Background(), captureRequest())

	var contractErr *ContractError
	require.ErrorAs(t, err, &contractErr)
	assert.JSONEq(t, `{"status":"created"}`, string(contractErr.Body))

	var rej *RejectionError
	assert.False(t, errors.As(err, &rej), "contract violation is not a provider rejection")
	assert.Zero(t, provider.captureCalls)
}

func TestExecute_TokenTrimmedBeforeAuthorize(t *testing.T) {
	provider := &mockProvider{charge: authorizedCharge("chg_1"), captured: &ProviderResult{Raw: json.RawMessage(`{}`)}}
	svc := NewService(provider)

	req := captureRequest()
	req.CheckoutToken = "  tok_abc  "
	_, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "tok_abc", provider.lastToken)
}

// --- Phase 2 ---

func TestExecute_AuthorizeOnly(t *testing.T) {
	provider := &mockProvider{charge: authorizedCharge("chg_1")}
	svc := NewService(provider)

	res, err := svc.Execute(context.Background(), Request{CheckoutToken: "tok", Capture: false})
	require.NoError(t, err)

	assert.Equal(t, StateAuthorized, res.State)
	assert.Equal(t, "chg_1", res.ChargeID)
	assert.True(t, res.Authorized)
	assert.False(t, res.Captured)
	assert.Equal(t, 1, provider.createCalls, "exactly one remote call without capture")
	assert.Zero(t, provider.captureCalls)
}

func TestExecute_AuthorizeAndCapture(t *testing.T) {
	provider := &mockProvider{
		charge:   authorizedCharge("chg_1"),
		captured: &ProviderResult{Raw: json.RawMessage(`{"status":"captured"}`)},
	}
	svc := NewService(provider)

	res, err := svc.Execute(context.Background(), Request{
		CheckoutToken:        "tok",
		OrderID:              "ORDER-9",
		AmountMinor:          2500,
		Capture:              true,
		ShippingCarrier:      "UPS",
		ShippingConfirmation: "1Z999",
	})
	require.NoError(t, err)

	assert.Equal(t, StateCaptured, res.State)
	assert.True(t, res.Captured)
	assert.Equal(t, "chg_1", provider.lastChargeID)
	assert.Equal(t, CaptureRequest{
		OrderID:              "ORDER-9",
		AmountMinor:          2500,
		ShippingCarrier:      "UPS",
		ShippingConfirmation: "1Z999",
	}, provider.lastCapture)
}

func TestExecute_CaptureRejection_CarriesChargeID(t *testing.T) {
	provider := &mockProvider{
		charge:     authorizedCharge("chg_1"),
		captureErr: &StatusError{Status: 500, Body: json.RawMessage(`{"message":"boom"}`)},
	}
	svc := NewService(provider)

	_, err := svc.Execute(context.Background(), captureRequest())

	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, StepCapture, rej.Step)
	assert.Equal(t, 500, rej.Status)
	assert.Equal(t, "chg_1", rej.ChargeID, "charge id must survive a capture failure")
}

func TestExecute_CaptureTransportFailure(t *testing.T) {
	provider := &mockProvider{
		charge:     authorizedCharge("chg_1"),
		captureErr: errors.New("connection reset"),
	}
	svc := NewService(provider)

	_, err := svc.Execute(context.Background(), captureRequest())

	var trErr *TransportError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, StepCapture, trErr.Step)
	assert.Equal(t, "chg_1", trErr.ChargeID)
}

func TestExecute_CredentialErrorPassesThrough(t *testing.T) {
	provider := &mockProvider{createErr: &CredentialError{Msg: "Missing AFFIRM_PUBLIC_KEY or AFFIRM_PRIVATE_KEY env vars"}}
	svc := NewService(provider)

	_, err := svc.Execute(context.Background(), captureRequest())

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
}
