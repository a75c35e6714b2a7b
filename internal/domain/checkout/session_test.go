package checkout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSession(r *Registry) *Session {
	return r.Open(&Payload{OrderID: NewOrderID(), Total: 150000})
}

func TestSession_ExactlyOneTerminalEvent(t *testing.T) {
	r := NewRegistry(time.Hour)
	s := openTestSession(r)

	require.NoError(t, s.Resolve(Outcome{Kind: OutcomeSuccess, Token: "tok_1"}))
	require.ErrorIs(t, s.Resolve(Outcome{Kind: OutcomeCancel}), ErrSessionResolved)

	o, resolved := s.Outcome()
	require.True(t, resolved)
	assert.Equal(t, OutcomeSuccess, o.Kind)
	assert.Equal(t, "tok_1", o.Token)
}

func TestSession_SuccessRequiresToken(t *testing.T) {
	r := NewRegistry(time.Hour)
	s := openTestSession(r)

	require.ErrorIs(t, s.Resolve(Outcome{Kind: OutcomeSuccess}), ErrTokenRequired)

	// The rejected resolve must not have consumed the session.
	require.NoError(t, s.Resolve(Outcome{Kind: OutcomeSuccess, Token: "tok_2"}))
}

func TestSession_ConcurrentResolvers(t *testing.T) {
	r := NewRegistry(time.Hour)
	s := openTestSession(r)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Resolve(Outcome{Kind: OutcomeCancel}) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestSession_Wait(t *testing.T) {
	r := NewRegistry(time.Hour)
	s := openTestSession(r)

	go func() {
		_ = s.Resolve(Outcome{Kind: OutcomeFail, Reason: "declined"})
	}()

	o, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFail, o.Kind)
	assert.Equal(t, "declined", o.Reason)
}

func TestSession_WaitHonorsContext(t *testing.T) {
	r := NewRegistry(time.Hour)
	s := openTestSession(r)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry_Reopen(t *testing.T) {
	r := NewRegistry(time.Hour)
	s := openTestSession(r)

	// An unresolved session cannot be reopened.
	_, err := r.Reopen(s.OrderID)
	require.ErrorIs(t, err, ErrSessionOpen)

	require.NoError(t, r.Resolve(s.OrderID, Outcome{Kind: OutcomeCancel}))

	next, err := r.Reopen(s.OrderID)
	require.NoError(t, err)
	assert.NotEqual(t, s.OrderID, next.OrderID, "reopen gets a fresh order id")
	assert.Equal(t, s.Payload().Total, next.Payload().Total, "payload is retained")

	_, resolved := next.Outcome()
	assert.False(t, resolved, "a reopened session starts unresolved")

	// The original session is gone from the registry.
	_, err = r.Get(s.OrderID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_ReopenOnlyAfterFailOrCancel(t *testing.T) {
	r := NewRegistry(time.Hour)

	s := openTestSession(r)
	require.NoError(t, r.Resolve(s.OrderID, Outcome{Kind: OutcomeSuccess, Token: "tok"}))
	_, err := r.Reopen(s.OrderID)
	require.ErrorIs(t, err, ErrNotReopenable)

	s2 := openTestSession(r)
	require.NoError(t, r.Resolve(s2.OrderID, Outcome{Kind: OutcomeValidationError, Fields: []string{"total"}}))
	_, err = r.Reopen(s2.OrderID)
	require.ErrorIs(t, err, ErrNotReopenable)
}

func TestRegistry_Sweep(t *testing.T) {
	r := NewRegistry(time.Minute)

	succeeded := openTestSession(r)
	require.NoError(t, succeeded.Resolve(Outcome{Kind: OutcomeSuccess, Token: "tok"}))

	failed := openTestSession(r)
	require.NoError(t, failed.Resolve(Outcome{Kind: OutcomeFail}))

	pending := openTestSession(r)

	removed := r.Sweep(time.Now())
	assert.Equal(t, 1, removed, "only the success is swept before the TTL")

	_, err := r.Get(failed.OrderID)
	require.NoError(t, err, "failed sessions stay reopenable until the TTL")

	removed = r.Sweep(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 2, removed)

	_, err = r.Get(pending.OrderID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSDKLoader_SingleFlight(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	l := NewSDKLoader(srv.URL+"/js/v2/affirm.js", "pk_test", srv.Client())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sdk, err := l.Load(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "pk_test", sdk.PublicKey)
		}()
	}
	wg.Wait()

	// And once more after the cache is warm.
	_, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), fetches.Load(), "the script is fetched exactly once")
	assert.True(t, l.Loaded())
}

func TestSDKLoader_FailureNotCached(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fetches.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	l := NewSDKLoader(srv.URL, "pk_test", srv.Client())

	_, err := l.Load(context.Background())
	var loadErr *SDKLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.False(t, l.Loaded())

	_, err = l.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, l.Loaded())
}
