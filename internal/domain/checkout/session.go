package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// Session registry errors.
var (
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrSessionResolved  = errors.New("checkout session already resolved")
	ErrSessionOpen      = errors.New("checkout session not resolved yet")
	ErrTokenRequired    = errors.New("success outcome requires a checkout token")
	ErrNotReopenable    = errors.New("only failed or cancelled sessions can be reopened")
	ErrTokenNotReusable = errors.New("a checkout token cannot be carried into a reopened session")
)

// OutcomeKind tags the terminal event of a checkout session.
type OutcomeKind string

// The four terminal outcomes of the provider's interactive flow.
const (
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeFail            OutcomeKind = "fail"
	OutcomeValidationError OutcomeKind = "validation_error"
	OutcomeCancel          OutcomeKind = "cancel"
)

// Outcome is the single terminal event of a session. Exactly one of these is
// ever delivered per session.
type Outcome struct {
	Kind OutcomeKind
	// Token is the opaque single-use checkout token. Set only on success.
	Token string
	// Reason carries the provider's failure description on fail.
	Reason string
	// Fields names the offending payload fields on validation_error.
	Fields []string
}

// Session is an ephemeral, client-held checkout attempt: the payload that was
// opened, the order id of this attempt, and a single-resolution terminal
// outcome. It holds no server-side resources beyond an entry in the Registry.
type Session struct {
	OrderID    string
	TotalMinor int64
	CreatedAt  time.Time

	payload *Payload

	mu       sync.Mutex
	resolved bool
	outcome  Outcome
	done     chan struct{}
}

func newSession(p *Payload) *Session {
	return &Session{
		OrderID:    p.OrderID,
		TotalMinor: p.Total,
		CreatedAt:  time.Now(),
		payload:    p,
		done:       make(chan struct{}),
	}
}

// Payload returns the payload this session was opened with. Retained across
// fail/cancel so a retry can reopen an equivalent session without rebuilding.
func (s *Session) Payload() *Payload {
	return s.payload
}

// Resolve delivers the terminal outcome. The first call wins; later calls
// return ErrSessionResolved. A success outcome without a token is rejected
// before resolution.
func (s *Session) Resolve(o Outcome) error {
	if o.Kind == OutcomeSuccess && o.Token == "" {
		return ErrTokenRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return ErrSessionResolved
	}
	s.resolved = true
	s.outcome = o
	close(s.done)
	return nil
}

// Outcome returns the terminal outcome if the session has resolved.
func (s *Session) Outcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.resolved
}

// Wait blocks until the session resolves or ctx is done.
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		o, _ := s.Outcome()
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Registry tracks open checkout sessions by order id. Sessions are discarded
// once resolved and swept, or when their TTL lapses without resolution.
type Registry struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a Registry. Unresolved sessions older than ttl are
// removed by Sweep.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Open registers a new session for the payload's order id.
func (r *Registry) Open(p *Payload) *Session {
	s := newSession(p)
	r.mu.Lock()
	r.sessions[s.OrderID] = s
	r.mu.Unlock()
	return s
}

// Get returns the session for orderID, or ErrSessionNotFound.
func (r *Registry) Get(orderID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[orderID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Resolve delivers the terminal outcome to the session for orderID.
func (r *Registry) Resolve(orderID string, o Outcome) error {
	s, err := r.Get(orderID)
	if err != nil {
		return err
	}
	return s.Resolve(o)
}

// Reopen starts a fresh provider interaction from a failed or cancelled
// session: same payload, fresh order id, and never a carried-over token.
// The old session is dropped from the registry.
func (r *Registry) Reopen(orderID string) (*Session, error) {
	prev, err := r.Get(orderID)
	if err != nil {
		return nil, err
	}

	o, resolved := prev.Outcome()
	if !resolved {
		return nil, ErrSessionOpen
	}
	if o.Kind != OutcomeFail && o.Kind != OutcomeCancel {
		return nil, ErrNotReopenable
	}

	p := *prev.payload
	p.OrderID = NewOrderID()
	next := newSession(&p)

	r.mu.Lock()
	delete(r.sessions, orderID)
	r.sessions[next.OrderID] = next
	r.mu.Unlock()
	return next, nil
}

// Sweep drops sessions past their TTL, plus resolved successes (their token
// is spent and their payload is no longer needed). Failed and cancelled
// sessions stay until the TTL so a retry can still reopen them.
// Returns the number of sessions removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	for id, s := range r.sessions {
		o, resolved := s.Outcome()
		expired := now.Sub(s.CreatedAt) > r.ttl
		if expired || (resolved && o.Kind == OutcomeSuccess) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Janitor sweeps the registry at the given interval until ctx is cancelled.
func (r *Registry) Janitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.Sweep(now)
		}
	}
}
