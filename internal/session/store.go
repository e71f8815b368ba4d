package session

import (
	"context"
	"sync"
	"time"

	"github.com/openscholar/journal-backend/internal/provider"
	"go.uber.org/zap"
)

// State is the session store's position in its lifecycle.
type State int

const (
	// Uninitialized means Start has not been called yet.
	Uninitialized State = iota
	// Loading means the bootstrap query to the provider is in flight.
	// Consumers must neither render protected content nor redirect while
	// the store is Loading.
	Loading
	// Authenticated means a valid session with an identity is live.
	Authenticated
	// Anonymous means no session is live.
	Anonymous
)

// String names the state for logs.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Snapshot is the externally visible session state at one instant.
type Snapshot struct {
	State    State
	Identity *provider.Identity
	Kind     provider.ChangeKind
	At       time.Time
}

// SessionSource is the provider operation the bootstrap query relies on.
type SessionSource interface {
	RefreshSession(ctx context.Context, refreshToken string) (*provider.Session, error)
}

// StoreConfig bundles the store's dependencies. RefreshToken carries the
// persisted token the bootstrap query redeems; when empty the store
// resolves straight to Anonymous.
type StoreConfig struct {
	Source       SessionSource
	RefreshToken string
	Logger       *zap.Logger
	Clock        func() time.Time
}

// Store owns the single process-wide session. It is the only writer of
// session state: the gateway and the provider's pushed notifications both
// funnel through Apply, and the latest applied change wins regardless of
// which operation was in flight. Every other component reads snapshots.
type Store struct {
	mu         sync.RWMutex
	state      State
	session    *provider.Session
	source     SessionSource
	refresh    string
	logger     *zap.Logger
	clock      func() time.Time
	dispatcher *changeDispatcher
}

// NewStore constructs a store in the Uninitialized state.
func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		state:      Uninitialized,
		source:     cfg.Source,
		refresh:    cfg.RefreshToken,
		logger:     logger,
		clock:      clock,
		dispatcher: newChangeDispatcher(),
	}
}

// Start moves the store to Loading and issues the bootstrap query. It
// blocks until the query resolves to Authenticated or Anonymous.
func (s *Store) Start(ctx context.Context) {
	s.transition(Loading, nil, provider.ChangeKind(""))

	if s.source == nil || s.refresh == "" {
		s.transition(Anonymous, nil, provider.ChangeSignedOut)
		return
	}

	restored, err := s.source.RefreshSession(ctx, s.refresh)
	if err != nil || !restored.Valid(s.clock()) {
		if err != nil {
			s.logger.Info("session bootstrap resolved anonymous", zap.Error(err))
		}
		s.transition(Anonymous, nil, provider.ChangeSignedOut)
		return
	}
	s.transition(Authenticated, restored, provider.ChangeSignedIn)
}

// Apply delivers one session change. Changes are applied in arrival order,
// last-write-wins: a sign-in racing a pushed revocation leaves the store in
// whichever state was applied last, and consumers re-read Current rather
// than trusting the outcome of operations they initiated.
func (s *Store) Apply(change provider.Change) {
	switch change.Kind {
	case provider.ChangeSignedIn, provider.ChangeTokenRefreshed:
		if change.Session.Valid(s.clock()) {
			s.transition(Authenticated, change.Session, change.Kind)
			return
		}
		// A session without an identity is not a session.
		s.transition(Anonymous, nil, change.Kind)
	case provider.ChangeSignedOut, provider.ChangeRevoked:
		s.transition(Anonymous, nil, change.Kind)
	}
}

// Current returns the state and identity visible right now.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(provider.ChangeKind(""))
}

// Session returns the live session, or nil outside Authenticated. Callers
// treat the returned session as read-only.
func (s *Store) Session() *provider.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated {
		return nil
	}
	return s.session
}

// Subscribe registers for state snapshots until ctx is done. The returned
// cancel function is safe to call more than once.
func (s *Store) Subscribe(ctx context.Context) (<-chan Snapshot, func()) {
	return s.dispatcher.subscribe(ctx)
}

func (s *Store) transition(state State, sess *provider.Session, kind provider.ChangeKind) {
	s.mu.Lock()
	previous := s.state
	s.state = state
	s.session = sess
	snapshot := s.snapshotLocked(kind)
	s.mu.Unlock()

	if previous != state {
		s.logger.Info("session state changed",
			zap.String("from", previous.String()),
			zap.String("to", state.String()))
	}
	s.dispatcher.publish(snapshot)
}

func (s *Store) snapshotLocked(kind provider.ChangeKind) Snapshot {
	snapshot := Snapshot{State: s.state, Kind: kind, At: s.clock()}
	if s.state == Authenticated && s.session != nil && s.session.Identity != nil {
		identityCopy := *s.session.Identity
		snapshot.Identity = &identityCopy
	}
	return snapshot
}
