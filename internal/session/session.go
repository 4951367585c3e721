package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"coffeeshop/internal/domain"
)

// Encoder builds the payload a session waits on.
type Encoder interface {
	Encode(amount float64, currency domain.Currency, billReference string) (*domain.KHQRPayload, error)
}

// Verifier looks up settlement for a content hash.
// A returned error is fatal to the session; transient failures come back as Error outcomes.
type Verifier interface {
	Verify(ctx context.Context, contentHash string) (domain.VerificationOutcome, error)
}

// Timing holds the cadence of a session.
type Timing struct {
	TTL              time.Duration
	Tick             time.Duration
	InitialPollDelay time.Duration
	PollInterval     time.Duration
}

// DefaultTiming is a 5 minute window, 1s countdown, first poll after 2s then every 3s.
func DefaultTiming() Timing {
	return Timing{
		TTL:              5 * time.Minute,
		Tick:             time.Second,
		InitialPollDelay: 2 * time.Second,
		PollInterval:     3 * time.Second,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.TTL <= 0 {
		t.TTL = d.TTL
	}
	if t.Tick <= 0 {
		t.Tick = d.Tick
	}
	if t.InitialPollDelay <= 0 {
		t.InitialPollDelay = d.InitialPollDelay
	}
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
	return t
}

// Params identifies what a session is collecting.
type Params struct {
	CheckoutID    string
	Amount        float64
	Currency      domain.Currency
	BillReference string
}

// Callbacks are invoked from the session goroutine, at most once each, and only one of them per session.
type Callbacks struct {
	OnVerified func(Snapshot)
	OnExpired  func(Snapshot)
	OnFailed   func(Snapshot)
}

// Config holds the collaborators of a session.
type Config struct {
	Encoder   Encoder
	Verifier  Verifier
	Timing    Timing
	Clock     Clock
	Callbacks Callbacks
}

// Snapshot is a point-in-time copy of session state.
type Snapshot struct {
	ID               string
	CheckoutID       string
	State            domain.SessionState
	SecondsRemaining int
	Payload          domain.KHQRPayload
	TransactionID    string
	Synthesized      bool
	Err              error
	Polls            int
}

type pollResult struct {
	outcome domain.VerificationOutcome
	err     error
}

// Session is one KHQR payment attempt.
//
// A single goroutine owns the countdown and the poll schedule. Every transition,
// including Cancel from other goroutines, is guarded by "still AWAITING_PAYMENT"
// under mu, so exactly one terminal state is ever entered.
type Session struct {
	id        string
	params    Params
	payload   *domain.KHQRPayload
	verifier  Verifier
	timing    Timing
	callbacks Callbacks

	countdown Ticker
	pollTimer Timer
	results   chan pollResult
	inFlight  bool // owned by the loop goroutine

	mu               sync.RWMutex
	state            domain.SessionState
	secondsRemaining int
	transactionID    string
	synthesized      bool
	err              error

	polls  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Start encodes a payload and begins the countdown and polling.
// Encoder errors are returned and no session is created.
// ctx bounds the session's lifetime and should outlive the request that started it.
func Start(ctx context.Context, id string, p Params, cfg Config) (*Session, error) {
	payload, err := cfg.Encoder.Encode(p.Amount, p.Currency, p.BillReference)
	if err != nil {
		return nil, err
	}

	s := newSession(ctx, id, p, payload, cfg)
	go s.run()

	log.Info().
		Str("session_id", s.id).
		Str("checkout_id", p.CheckoutID).
		Str("md5", payload.ContentHash).
		Str("amount", payload.FormattedAmount()).
		Str("currency", string(payload.Currency)).
		Msg("khqr session started")

	return s, nil
}

// newSession builds a session without starting its loop.
func newSession(ctx context.Context, id string, p Params, payload *domain.KHQRPayload, cfg Config) *Session {
	timing := cfg.Timing.withDefaults()
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		id:               id,
		params:           p,
		payload:          payload,
		verifier:         cfg.Verifier,
		timing:           timing,
		callbacks:        cfg.Callbacks,
		countdown:        clock.NewTicker(timing.Tick),
		pollTimer:        clock.NewTimer(timing.InitialPollDelay),
		results:          make(chan pollResult, 1),
		state:            domain.SessionAwaitingPayment,
		secondsRemaining: int(timing.TTL / timing.Tick),
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Params returns the parameters the session was started with.
func (s *Session) Params() Params { return s.params }

// Payload returns the payload the session is waiting on.
func (s *Session) Payload() domain.KHQRPayload { return *s.payload }

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current state.
func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:               s.id,
		CheckoutID:       s.params.CheckoutID,
		State:            s.state,
		SecondsRemaining: s.secondsRemaining,
		Payload:          *s.payload,
		TransactionID:    s.transactionID,
		Synthesized:      s.synthesized,
		Err:              s.err,
		Polls:            int(s.polls.Load()),
	}
}

// Cancel abandons the session. It is a no-op on a terminal session apart from
// making sure the goroutine stops. It does not block.
func (s *Session) Cancel() {
	if s.transition(domain.SessionCancelled, nil) {
		log.Info().Str("session_id", s.id).Str("checkout_id", s.params.CheckoutID).Msg("khqr session cancelled")
	}
	s.cancel()
}

// Wait blocks until the session goroutine has exited or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer s.cancel()
	defer s.countdown.Stop()
	defer s.pollTimer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.transition(domain.SessionCancelled, nil)
			return
		case r := <-s.results:
			if s.handleResult(r) {
				return
			}
		case <-s.countdown.C():
			if s.handleTick() {
				return
			}
		case <-s.pollTimer.C():
			s.handlePoll()
		}
	}
}

// handleTick advances the countdown. A poll result already waiting is applied first,
// so a payment confirmed in the last second wins over expiry.
func (s *Session) handleTick() (stop bool) {
	select {
	case r := <-s.results:
		if s.handleResult(r) {
			return true
		}
	default:
	}

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return true
	}
	if s.secondsRemaining > 0 {
		s.secondsRemaining--
	}
	if s.secondsRemaining > 0 {
		s.mu.Unlock()
		return false
	}
	s.state = domain.SessionExpired
	snap := s.snapshotLocked()
	s.mu.Unlock()

	log.Info().Str("session_id", s.id).Str("checkout_id", s.params.CheckoutID).Str("md5", s.payload.ContentHash).
		Msg("khqr session expired")
	if s.callbacks.OnExpired != nil {
		s.callbacks.OnExpired(snap)
	}
	return true
}

// handlePoll starts a verification call unless one is still running, then reschedules.
func (s *Session) handlePoll() {
	if !s.inFlight && s.State() == domain.SessionAwaitingPayment {
		s.inFlight = true
		go s.poll()
	}
	s.pollTimer.Reset(s.timing.PollInterval)
}

func (s *Session) poll() {
	s.polls.Add(1)
	outcome, err := s.verifier.Verify(s.ctx, s.payload.ContentHash)
	select {
	case s.results <- pollResult{outcome: outcome, err: err}:
	case <-s.ctx.Done():
	}
}

// handleResult applies one verification result.
func (s *Session) handleResult(r pollResult) (stop bool) {
	s.inFlight = false

	if r.err != nil {
		if !errors.Is(r.err, domain.ErrConfiguration) {
			log.Warn().Err(r.err).Str("session_id", s.id).Msg("khqr verification failed")
			return false
		}
		if !s.transition(domain.SessionFailed, func() { s.err = r.err }) {
			return true
		}
		log.Error().Err(r.err).Str("session_id", s.id).Str("checkout_id", s.params.CheckoutID).
			Msg("khqr session aborted: verifier is not configured")
		if s.callbacks.OnFailed != nil {
			s.callbacks.OnFailed(s.Snapshot())
		}
		return true
	}

	switch r.outcome.Status {
	case domain.VerificationVerified:
		if !s.transition(domain.SessionVerified, func() {
			s.transactionID = r.outcome.TransactionID
			s.synthesized = r.outcome.Synthesized
		}) {
			return true
		}
		log.Info().Str("session_id", s.id).Str("checkout_id", s.params.CheckoutID).
			Str("transaction_id", r.outcome.TransactionID).Bool("synthesized", r.outcome.Synthesized).
			Msg("khqr payment verified")
		if s.callbacks.OnVerified != nil {
			s.callbacks.OnVerified(s.Snapshot())
		}
		return true
	case domain.VerificationError:
		log.Debug().Str("session_id", s.id).Str("message", r.outcome.Message).Msg("khqr verification error, will retry")
	default:
		log.Debug().Str("session_id", s.id).Msg("khqr payment pending")
	}
	return false
}

// transition moves an awaiting session into a terminal state and reports whether it did.
func (s *Session) transition(to domain.SessionState, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = to
	if apply != nil {
		apply()
	}
	return true
}
