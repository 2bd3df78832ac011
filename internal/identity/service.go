package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrgn-points/points_api/internal/authproof"
	"github.com/mrgn-points/points_api/internal/logging"
)

const maxCodeAttempts = 5

// ReferralApplier issues referral codes and applies referral links during signup.
type ReferralApplier interface {
	NewCode() string
	Apply(ctx context.Context, identity Identity, code string) (Identity, error)
}

// Service binds verified accounts to persistent identities.
type Service struct {
	repo      Repository
	referrals ReferralApplier
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates an identity binder. referrals may be nil, in which case
// referral codes are still issued but never applied.
func NewService(repo Repository, referrals ReferralApplier, logger *slog.Logger) *Service {
	return &Service{repo: repo, referrals: referrals, now: time.Now, logger: logging.Component(logger, "identity")}
}

// Signup creates the identity for a verified account, or returns the existing one.
// A referral failure is reported in the result and never aborts the signup.
func (s *Service) Signup(ctx context.Context, account authproof.VerifiedAccount, referralCode string) (SignupResult, error) {
	var (
		identity Identity
		created  bool
		err      error
	)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate := Identity{
			ID:           uuid.NewString(),
			Address:      account.Address,
			ReferralCode: s.newCode(),
			AuthMethod:   string(account.Method),
			CreatedAt:    s.now().UTC(),
		}
		identity, created, err = s.repo.CreateIfAbsent(ctx, candidate)
		if !errors.Is(err, ErrReferralCodeTaken) {
			break
		}
	}
	if err != nil {
		return SignupResult{}, fmt.Errorf("bind identity: %w", err)
	}

	result := SignupResult{Identity: identity, Created: created}

	referralCode = strings.TrimSpace(referralCode)
	if referralCode == "" || s.referrals == nil {
		return result, nil
	}
	updated, err := s.referrals.Apply(ctx, identity, referralCode)
	if err != nil {
		s.logger.Info("referral not applied",
			slog.String("address", identity.Address),
			slog.String("code", referralCode),
			slog.Any("error", err))
		result.ReferralErr = err
		return result, nil
	}
	result.Identity = updated
	return result, nil
}

// Login confirms that a verified account is bound and records the login time.
func (s *Service) Login(ctx context.Context, account authproof.VerifiedAccount) (Identity, error) {
	identity, err := s.repo.FindByAddress(ctx, account.Address)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, ErrUnknownAccount
	}
	if err != nil {
		return Identity{}, err
	}
	now := s.now().UTC()
	if err := s.repo.TouchLogin(ctx, identity.ID, now); err != nil {
		return Identity{}, err
	}
	identity.LastLogin = &now
	return identity, nil
}

// Lookup reports whether an address is bound, without side effects.
func (s *Service) Lookup(ctx context.Context, address string) (Identity, bool, error) {
	identity, err := s.repo.FindByAddress(ctx, address)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, err
	}
	return identity, true, nil
}

// FindByID fetches an identity by identifier.
func (s *Service) FindByID(ctx context.Context, id string) (Identity, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) newCode() string {
	if s.referrals != nil {
		return s.referrals.NewCode()
	}
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
