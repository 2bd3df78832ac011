package identity

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when no identity matches.
	ErrNotFound = errors.New("identity not found")
	// ErrDuplicateAccount is returned by a plain create when the address is already bound.
	ErrDuplicateAccount = errors.New("account already bound")
	// ErrUnknownAccount is returned by Login for addresses that never signed up.
	ErrUnknownAccount = errors.New("account not registered")
	// ErrReferralCodeTaken means a generated referral code collided with an existing one.
	ErrReferralCodeTaken = errors.New("referral code taken")
)

// Identity binds an account address to referral and points state.
type Identity struct {
	ID           string
	Address      string
	ReferralCode string
	// ReferredBy is the referrer's address; empty until attached, then immutable.
	ReferredBy   string
	AuthMethod   string
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// HasReferrer reports whether a referral link was attached.
func (i Identity) HasReferrer() bool {
	return i.ReferredBy != ""
}

// SignupResult is the outcome of a signup. ReferralErr carries a non-fatal referral
// failure alongside a usable identity.
type SignupResult struct {
	Identity    Identity
	Created     bool
	ReferralErr error
}
