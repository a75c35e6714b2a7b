package cardpay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIBase: srv.URL, SecretKey: "sk_test_123"}, srv.Client())
}

func sessionParams() SessionParams {
	return SessionParams{
		LineItems: []LineItem{
			{Name: "XMT 250", UnitAmount: 150000, Quantity: 1},
			{Name: "Helmet", UnitAmount: 8999, Quantity: 2},
		},
		SuccessURL: "https://shop.example.com/?card=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://shop.example.com/?card=cancel",
	}
}

func TestCreateSession(t *testing.T) {
	var gotAuth string
	var gotForm url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		var err error
		gotForm, err = url.ParseQuery(string(body))
		require.NoError(t, err)

		_, _ = w.Write([]byte(`{"id":"cs_1","url":"https://pay.example.com/cs_1"}`))
	})

	s, err := c.CreateSession(context.Background(), sessionParams())
	require.NoError(t, err)

	assert.Equal(t, "cs_1", s.ID)
	assert.Equal(t, "https://pay.example.com/cs_1", s.URL)
	assert.Equal(t, "Bearer sk_test_123", gotAuth)

	assert.Equal(t, "payment", gotForm.Get("mode"))
	assert.Equal(t, "card", gotForm.Get("payment_method_types[0]"))
	assert.Equal(t, "XMT 250", gotForm.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "150000", gotForm.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "usd", gotForm.Get("line_items[1][price_data][currency]"))
	assert.Equal(t, "2", gotForm.Get("line_items[1][quantity]"))
	assert.Contains(t, gotForm.Get("success_url"), "{CHECKOUT_SESSION_ID}")
}

func TestCreateSession_MissingSecretKey(t *testing.T) {
	c := NewClient(Config{}, nil)
	_, err := c.CreateSession(context.Background(), sessionParams())
	require.ErrorIs(t, err, ErrMissingSecretKey)
	assert.False(t, c.Configured())
}

func TestCreateSession_NoLineItems(t *testing.T) {
	c := NewClient(Config{SecretKey: "sk"}, nil)
	_, err := c.CreateSession(context.Background(), SessionParams{})
	require.Error(t, err)
}

func TestCreateSession_ProcessorError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Your card was declined.","code":"card_declined"}}`))
	})

	_, err := c.CreateSession(context.Background(), sessionParams())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 402, apiErr.Status)
	assert.Equal(t, "Your card was declined.", apiErr.Message)
	assert.Equal(t, "card_declined", apiErr.Code)
}

func TestCreateSession_MissingRedirectURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cs_1"}`))
	})

	_, err := c.CreateSession(context.Background(), sessionParams())
	require.Error(t, err)
}
