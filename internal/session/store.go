// Package session keeps the process-local view of the connected wallet: who it is,
// whether it has signed in, and its latest points.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mrgn-points/points_api/internal/identity"
	"github.com/mrgn-points/points_api/internal/logging"
	"github.com/mrgn-points/points_api/internal/points"
)

// Status is the authentication state of the connected wallet.
type Status int

const (
	// StatusUnknown means a wallet is connected but its identity has not been resolved.
	StatusUnknown Status = iota
	// StatusGuest means no identity is signed in for the current wallet.
	StatusGuest
	// StatusAuthenticated means the identity of the connected wallet signed in.
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusGuest:
		return "guest"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

var (
	// ErrNoWallet is returned when an operation needs a connected wallet.
	ErrNoWallet = errors.New("no wallet connected")
	// ErrAddressMismatch means an identity was offered for a different address than
	// the connected one.
	ErrAddressMismatch = errors.New("identity does not match connected wallet")
	// ErrNotAuthenticated is returned by RefreshPoints outside an authenticated session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStale means the wallet changed while a request was outstanding; its result
	// was dropped.
	ErrStale = errors.New("session changed during request")
)

// IdentityLookup resolves the identity bound to an address.
type IdentityLookup interface {
	Lookup(ctx context.Context, address string) (identity.Identity, bool, error)
}

// PointsSource returns the points of an address.
type PointsSource interface {
	GetPoints(ctx context.Context, address string) (points.Record, error)
}

// State is a copy of the session at one moment. Identity is set only when Status is
// StatusAuthenticated. Registered reports whether the address already has an
// identity, which decides between signup and login.
type State struct {
	Status     Status
	Address    string
	Identity   *identity.Identity
	Registered bool
}

// Store tracks one wallet session. Every wallet change bumps a generation; results of
// requests started under an older generation are discarded.
type Store struct {
	lookup   IdentityLookup
	points   PointsSource
	onChange func(State)
	logger   *slog.Logger

	mu         sync.Mutex
	generation uint64
	state      State
	record     *points.Record
}

// Option configures a Store.
type Option func(*Store)

// WithOnChange registers a callback invoked after every state transition.
func WithOnChange(fn func(State)) Option {
	return func(s *Store) { s.onChange = fn }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logging.Component(logger, "session") }
}

// NewStore builds a store with no wallet connected.
func NewStore(lookup IdentityLookup, source PointsSource, opts ...Option) *Store {
	s := &Store{
		lookup: lookup,
		points: source,
		logger: logging.Discard(),
		state:  State{Status: StatusGuest},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current session state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Points returns the latest fetched record for the signed-in identity.
func (s *Store) Points() (points.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return points.Record{}, false
	}
	return *s.record, true
}

// OnWalletConnected resets the session to address and resolves whether it is
// registered. On lookup failure the session stays unknown.
func (s *Store) OnWalletConnected(ctx context.Context, address string) error {
	if address == "" {
		return ErrNoWallet
	}
	gen := s.reset(State{Status: StatusUnknown, Address: address})

	ident, ok, err := s.lookup.Lookup(ctx, address)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("identity lookup failed", slog.String("address", address), slog.Any("error", err))
		return fmt.Errorf("lookup identity: %w", err)
	}
	s.state = State{Status: StatusGuest, Address: address, Registered: ok && ident.Address == address}
	state := s.snapshot()
	s.mu.Unlock()

	s.notify(state)
	return nil
}

// OnWalletSwitched moves the session to another address. The previous identity and
// points are dropped before the new address is looked up. Switching to no address
// is a disconnect.
func (s *Store) OnWalletSwitched(ctx context.Context, address string) error {
	if address == "" {
		s.OnWalletDisconnected()
		return nil
	}
	s.mu.Lock()
	same := s.state.Address == address && s.state.Status != StatusUnknown
	s.mu.Unlock()
	if same {
		return nil
	}
	return s.OnWalletConnected(ctx, address)
}

// OnWalletDisconnected signs out and clears all cached data.
func (s *Store) OnWalletDisconnected() {
	s.reset(State{Status: StatusGuest})
}

// Authenticate records a signed-in identity after signup or login. It is rejected
// when the identity belongs to another address than the connected wallet.
func (s *Store) Authenticate(ident identity.Identity) error {
	s.mu.Lock()
	if s.state.Address == "" {
		s.mu.Unlock()
		return ErrNoWallet
	}
	if ident.Address != s.state.Address {
		s.mu.Unlock()
		return ErrAddressMismatch
	}
	s.generation++
	s.state = State{Status: StatusAuthenticated, Address: ident.Address, Identity: &ident, Registered: true}
	state := s.snapshot()
	s.mu.Unlock()

	s.notify(state)
	return nil
}

// RefreshPoints fetches the points of the signed-in identity and caches them.
func (s *Store) RefreshPoints(ctx context.Context) (points.Record, error) {
	s.mu.Lock()
	if s.state.Status != StatusAuthenticated {
		s.mu.Unlock()
		return points.Record{}, ErrNotAuthenticated
	}
	gen, address := s.generation, s.state.Address
	s.mu.Unlock()

	record, err := s.points.GetPoints(ctx, address)
	if err != nil {
		return points.Record{}, fmt.Errorf("fetch points: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || record.Address != address {
		return points.Record{}, ErrStale
	}
	s.record = &record
	return record, nil
}

func (s *Store) reset(next State) uint64 {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state = next
	s.record = nil
	state := s.snapshot()
	s.mu.Unlock()

	s.notify(state)
	return gen
}

func (s *Store) snapshot() State {
	st := s.state
	if st.Identity != nil {
		ident := *st.Identity
		st.Identity = &ident
	}
	return st
}

func (s *Store) notify(state State) {
	if s.onChange != nil {
		s.onChange(state)
	}
}
