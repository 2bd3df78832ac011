// Package referral resolves referral codes and applies one-time referral links.
package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/mrgn-points/points_api/internal/identity"
	"github.com/mrgn-points/points_api/internal/logging"
	"github.com/mrgn-points/points_api/internal/notification"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	minCodeLen   = 4
	maxCodeLen   = 32
)

var (
	// ErrInvalidCode means the code is malformed or owned by nobody.
	ErrInvalidCode = errors.New("invalid referral code")
	// ErrSelfReferral means an identity tried to refer itself.
	ErrSelfReferral = errors.New("self referral")
	// ErrAlreadySet means the identity already has a referrer; nothing was changed.
	ErrAlreadySet = errors.New("referrer already set")
)

// Store is the subset of the identity repository the ledger needs.
type Store interface {
	FindByAddress(ctx context.Context, address string) (identity.Identity, error)
	FindByReferralCode(ctx context.Context, code string) (identity.Identity, error)
	SetReferredBy(ctx context.Context, address, referrer string) (bool, error)
	ListReferees(ctx context.Context, referrer string) ([]string, error)
}

// Ledger resolves codes and attaches referrers exactly once.
type Ledger struct {
	store    Store
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewLedger builds a referral ledger. notifier may be nil.
func NewLedger(store Store, notifier notification.Notifier, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, notifier: notifier, logger: logging.Component(logger, "referral")}
}

// NewCode returns a random referral code.
func (l *Ledger) NewCode() string {
	return NewCode()
}

// NewCode returns a random code from an alphabet without look-alike characters.
func NewCode() string {
	alphabetSize := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			panic(fmt.Sprintf("referral: read random: %v", err))
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String()
}

// Normalize upper-cases and trims a user-entered code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ResolveCode returns the address of the identity owning code.
func (l *Ledger) ResolveCode(ctx context.Context, code string) (string, error) {
	code = Normalize(code)
	if !wellFormed(code) {
		return "", ErrInvalidCode
	}
	owner, err := l.store.FindByReferralCode(ctx, code)
	if errors.Is(err, identity.ErrNotFound) {
		return "", ErrInvalidCode
	}
	if err != nil {
		return "", fmt.Errorf("resolve referral code: %w", err)
	}
	return owner.Address, nil
}

// Attach links the identity to referrer once. An existing link is never overwritten.
func (l *Ledger) Attach(ctx context.Context, referred identity.Identity, referrer string) (identity.Identity, error) {
	if referrer == referred.Address {
		return referred, ErrSelfReferral
	}
	if referred.HasReferrer() {
		return referred, ErrAlreadySet
	}

	applied, err := l.store.SetReferredBy(ctx, referred.Address, referrer)
	if err != nil {
		return referred, fmt.Errorf("attach referral: %w", err)
	}
	if !applied {
		// Another request won the compare-and-set; report what is stored.
		current, err := l.store.FindByAddress(ctx, referred.Address)
		if err != nil {
			return referred, fmt.Errorf("reload identity: %w", err)
		}
		return current, ErrAlreadySet
	}

	referred.ReferredBy = referrer
	l.logger.Info("referral attached", slog.String("address", referred.Address), slog.String("referrer", referrer))
	if l.notifier != nil {
		_ = l.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindReferralAttached,
			Destination: referrer,
			Body:        fmt.Sprintf("%s signed up with your referral code", referred.Address),
		})
	}
	return referred, nil
}

// Apply resolves code and attaches its owner as the identity's referrer.
func (l *Ledger) Apply(ctx context.Context, referred identity.Identity, code string) (identity.Identity, error) {
	if referred.HasReferrer() {
		return referred, ErrAlreadySet
	}
	referrer, err := l.ResolveCode(ctx, code)
	if err != nil {
		return referred, err
	}
	return l.Attach(ctx, referred, referrer)
}

// Referees lists the addresses directly referred by address.
func (l *Ledger) Referees(ctx context.Context, address string) ([]string, error) {
	return l.store.ListReferees(ctx, address)
}

func wellFormed(code string) bool {
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Outcome names the result of applying a referral code, for metrics and responses.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "attached"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrSelfReferral):
		return "self_referral"
	case errors.Is(err, ErrAlreadySet):
		return "already_set"
	default:
		return "error"
	}
}
