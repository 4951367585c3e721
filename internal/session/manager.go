package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"coffeeshop/internal/domain"
)

// DefaultRetention is how long a finished session stays readable. Expired sessions are kept until replaced.
const DefaultRetention = 10 * time.Minute

// lockGrace is added to the session TTL for the checkout lock.
const lockGrace = time.Minute

// Locker keeps two instances from running sessions for the same checkout.
type Locker interface {
	AcquireCheckoutLock(ctx context.Context, checkoutID, owner string, ttl time.Duration) (bool, error)
	ReleaseCheckoutLock(ctx context.Context, checkoutID, owner string) error
}

type entry struct {
	session   *Session
	callbacks Callbacks
}

// Manager holds at most one session per checkout id.
type Manager struct {
	encoder   Encoder
	verifier  Verifier
	timing    Timing
	clock     Clock
	locker    Locker
	owner     string
	retention time.Duration

	mu       sync.Mutex
	sessions map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTiming sets the cadence of new sessions.
func WithTiming(t Timing) ManagerOption {
	return func(m *Manager) { m.timing = t.withDefaults() }
}

// WithClock sets the clock of new sessions.
func WithClock(c Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// WithLocker enables the per-checkout lock, held under owner.
func WithLocker(l Locker, owner string) ManagerOption {
	return func(m *Manager) {
		m.locker = l
		m.owner = owner
	}
}

// WithRetention sets how long finished sessions stay readable.
func WithRetention(d time.Duration) ManagerOption {
	return func(m *Manager) { m.retention = d }
}

// NewManager creates a Manager.
func NewManager(encoder Encoder, verifier Verifier, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		encoder:   encoder,
		verifier:  verifier,
		timing:    DefaultTiming(),
		clock:     RealClock{},
		owner:     uuid.NewString(),
		retention: DefaultRetention,
		sessions:  make(map[string]*entry),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins a session for p.CheckoutID, cancelling any previous one.
// Callbacks of a replaced session never fire.
func (m *Manager) Start(ctx context.Context, p Params, cb Callbacks) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx, p, cb)
}

// Regenerate replaces the session for checkoutID with a fresh payload and a full TTL.
func (m *Manager) Regenerate(ctx context.Context, checkoutID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[checkoutID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m.startLocked(ctx, e.session.Params(), e.callbacks)
}

func (m *Manager) startLocked(ctx context.Context, p Params, cb Callbacks) (*Session, error) {
	if m.ctx.Err() != nil {
		return nil, context.Canceled
	}

	if old, ok := m.sessions[p.CheckoutID]; ok {
		old.session.Cancel()
		if old.session.State() == domain.SessionVerified {
			return nil, ErrSessionCompleted
		}
	}

	locked := false
	if m.locker != nil {
		ok, err := m.locker.AcquireCheckoutLock(ctx, p.CheckoutID, m.owner, m.timing.TTL+lockGrace)
		if err != nil {
			// Lock errors degrade to single-instance behaviour.
			log.Warn().Err(err).Str("checkout_id", p.CheckoutID).Msg("checkout lock unavailable")
		} else if !ok {
			return nil, ErrSessionLocked
		}
		locked = err == nil
	}

	s, err := Start(m.ctx, uuid.NewString(), p, Config{
		Encoder:   m.encoder,
		Verifier:  m.verifier,
		Timing:    m.timing,
		Clock:     m.clock,
		Callbacks: m.guard(cb),
	})
	if err != nil {
		if locked {
			m.releaseLock(p.CheckoutID)
		}
		return nil, err
	}

	m.sessions[p.CheckoutID] = &entry{session: s, callbacks: cb}
	m.wg.Add(1)
	go m.watch(s)
	return s, nil
}

// guard drops callbacks from sessions that are no longer current.
func (m *Manager) guard(cb Callbacks) Callbacks {
	wrap := func(fn func(Snapshot)) func(Snapshot) {
		if fn == nil {
			return nil
		}
		return func(snap Snapshot) {
			if !m.isCurrent(snap.CheckoutID, snap.ID) {
				log.Debug().Str("session_id", snap.ID).Msg("dropping callback of replaced session")
				return
			}
			fn(snap)
		}
	}
	return Callbacks{
		OnVerified: wrap(cb.OnVerified),
		OnExpired:  wrap(cb.OnExpired),
		OnFailed:   wrap(cb.OnFailed),
	}
}

func (m *Manager) isCurrent(checkoutID, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[checkoutID]
	return ok && e.session.ID() == sessionID
}

// watch releases the checkout lock once s ends and forgets it after the retention
// period. Expired sessions stay until replaced so they can be regenerated.
func (m *Manager) watch(s *Session) {
	defer m.wg.Done()
	<-s.Done()

	checkoutID := s.Params().CheckoutID
	if m.locker != nil && m.isCurrent(checkoutID, s.ID()) {
		m.releaseLock(checkoutID)
	}
	if s.State() == domain.SessionExpired {
		return
	}

	select {
	case <-time.After(m.retention):
	case <-m.ctx.Done():
	}

	m.mu.Lock()
	if e, ok := m.sessions[checkoutID]; ok && e.session == s {
		delete(m.sessions, checkoutID)
	}
	m.mu.Unlock()
}

func (m *Manager) releaseLock(checkoutID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.locker.ReleaseCheckoutLock(ctx, checkoutID, m.owner); err != nil {
		log.Warn().Err(err).Str("checkout_id", checkoutID).Msg("failed to release checkout lock")
	}
}

// Get returns the current session for checkoutID.
func (m *Manager) Get(checkoutID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[checkoutID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.session, nil
}

// Cancel abandons the session for checkoutID. A verified session cannot be cancelled.
func (m *Manager) Cancel(checkoutID string) error {
	s, err := m.Get(checkoutID)
	if err != nil {
		return err
	}
	s.Cancel()
	if s.State() == domain.SessionVerified {
		return ErrSessionCompleted
	}
	return nil
}

// Shutdown cancels every session and waits for their goroutines.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, e := range m.sessions {
		e.session.Cancel()
	}
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
