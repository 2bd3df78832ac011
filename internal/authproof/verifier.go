package authproof

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/mrgn-points/points_api/internal/logging"
)

// Options tunes a Verifier.
type Options struct {
	AppName string
	// Validity is the number of ledger blocks after the anchor height during which
	// a challenge is accepted.
	Validity uint64
	// TTL bounds how long an unanswered challenge is kept by the store.
	TTL    time.Duration
	Logger *slog.Logger
}

// Verifier issues challenges and verifies signed proofs.
type Verifier struct {
	anchors  AnchorSource
	store    ChallengeStore
	appName  string
	validity uint64
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewVerifier builds a verifier over an anchor source and a challenge store.
func NewVerifier(anchors AnchorSource, store ChallengeStore, opts Options) *Verifier {
	if opts.Validity == 0 {
		opts.Validity = 150
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Minute
	}
	if opts.AppName == "" {
		opts.AppName = "points"
	}
	return &Verifier{
		anchors:  anchors,
		store:    store,
		appName:  opts.AppName,
		validity: opts.Validity,
		ttl:      opts.TTL,
		now:      time.Now,
		logger:   logging.Component(opts.Logger, "authproof"),
	}
}

// IssueChallenge binds a fresh anchor into a message for address to sign.
func (v *Verifier) IssueChallenge(ctx context.Context, address string) (Challenge, error) {
	if _, err := ParseAddress(address); err != nil {
		return Challenge{}, err
	}
	anchor, err := v.anchors.Latest(ctx)
	if err != nil {
		return Challenge{}, fmt.Errorf("read anchor: %w", err)
	}

	id := uuid.NewString()
	challenge := Challenge{
		ID:               id,
		Address:          address,
		Message:          challengeMessage(v.appName, address, anchor, id),
		Anchor:           anchor,
		IssuedAt:         v.now().UTC(),
		ValidUntilHeight: anchor.Height + v.validity,
	}
	if err := v.store.Put(ctx, challenge, v.ttl); err != nil {
		return Challenge{}, err
	}
	return challenge, nil
}

// Verify checks a proof against its challenge. A challenge is only found through
// the account it was issued to and is consumed whatever the outcome, so each
// challenge can be answered once.
func (v *Verifier) Verify(ctx context.Context, proof Proof) (VerifiedAccount, error) {
	method, err := ParseMethod(string(proof.Method))
	if err != nil {
		return VerifiedAccount{}, err
	}
	pub, err := ParseAddress(proof.Address)
	if err != nil {
		return VerifiedAccount{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	challenge, err := v.store.Take(ctx, proof.Address, proof.ChallengeID)
	if errors.Is(err, ErrChallengeNotFound) {
		return VerifiedAccount{}, fmt.Errorf("%w: unknown or used challenge", ErrChallengeExpired)
	}
	if err != nil {
		return VerifiedAccount{}, err
	}
	if challenge.Address != proof.Address {
		return VerifiedAccount{}, fmt.Errorf("%w: challenge issued to another account", ErrSignatureInvalid)
	}

	height, err := v.anchors.BlockHeight(ctx)
	if err != nil {
		return VerifiedAccount{}, fmt.Errorf("read block height: %w", err)
	}
	if height > challenge.Anchor.Height+v.validity {
		v.logger.Debug("challenge expired",
			slog.String("address", proof.Address),
			slog.Uint64("anchor_height", challenge.Anchor.Height),
			slog.Uint64("height", height))
		return VerifiedAccount{}, ErrChallengeExpired
	}

	sig, err := base58.Decode(proof.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return VerifiedAccount{}, fmt.Errorf("%w: malformed signature", ErrSignatureInvalid)
	}

	signed, err := signedBytes(method, proof, challenge, pub)
	if err != nil {
		return VerifiedAccount{}, err
	}
	if !ed25519.Verify(pub, signed, sig) {
		return VerifiedAccount{}, ErrSignatureInvalid
	}

	return VerifiedAccount{Address: proof.Address, Method: method, VerifiedAt: v.now().UTC()}, nil
}

// signedBytes returns the exact bytes the wallet must have signed for the method.
func signedBytes(method Method, proof Proof, challenge Challenge, pub ed25519.PublicKey) ([]byte, error) {
	if method == MethodMemo {
		return []byte(challenge.Message), nil
	}

	raw, err := base64.StdEncoding.DecodeString(proof.Transaction)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction encoding", ErrSignatureInvalid)
	}
	var tx AuthTransaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	switch {
	case !pub.Equal(tx.FeePayer):
		return nil, fmt.Errorf("%w: fee payer mismatch", ErrSignatureInvalid)
	case tx.RecentBlockhash != challenge.Anchor.Blockhash:
		return nil, fmt.Errorf("%w: anchor mismatch", ErrSignatureInvalid)
	case tx.Lamports != 0:
		return nil, fmt.Errorf("%w: transfer must carry no value", ErrSignatureInvalid)
	case tx.Memo != challenge.Message:
		return nil, fmt.Errorf("%w: memo mismatch", ErrSignatureInvalid)
	}
	return raw, nil
}
