package authproof

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

// Method identifies how the wallet proved control of the account.
type Method string

const (
	// MethodMemo proofs sign the challenge message directly, as carried in the
	// annotation of a zero-value transfer. Some hardware signers cannot produce them.
	MethodMemo Method = "memo"
	// MethodTransaction proofs sign a whole zero-value transfer whose memo carries
	// the challenge message.
	MethodTransaction Method = "transaction"
)

var (
	// ErrSignatureInvalid means the signature does not match the claimed account
	// for the exact challenge bytes.
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrChallengeExpired means the freshness anchor is outside the validity window,
	// or the challenge is unknown or was already used.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrUnsupportedMethod means the proof uses an encoding other than memo or transaction.
	ErrUnsupportedMethod = errors.New("unsupported proof method")
	// ErrInvalidAddress means the account address is not a base58 ed25519 public key.
	ErrInvalidAddress = errors.New("invalid account address")
	// ErrChallengeNotFound is returned by challenge stores for missing or consumed ids.
	ErrChallengeNotFound = errors.New("challenge not found")
)

// ParseMethod normalises a wire method tag. "tx" is accepted for MethodTransaction.
func ParseMethod(raw string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(MethodMemo):
		return MethodMemo, nil
	case string(MethodTransaction), "tx":
		return MethodTransaction, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, raw)
	}
}

// Anchor is a recent ledger state token bounding how long a challenge stays valid.
type Anchor struct {
	Blockhash string `json:"blockhash"`
	Height    uint64 `json:"height"`
}

// Challenge is the message an account must sign, bound to a freshness anchor.
type Challenge struct {
	ID       string    `json:"id"`
	Address  string    `json:"address"`
	Message  string    `json:"message"`
	Anchor   Anchor    `json:"anchor"`
	IssuedAt time.Time `json:"issued_at"`
	// ValidUntilHeight is the last ledger height at which the challenge is accepted.
	ValidUntilHeight uint64 `json:"valid_until_height"`
}

// Proof is a signed response to a Challenge.
type Proof struct {
	Address     string
	Method      Method
	ChallengeID string
	// Signature is base58 encoded.
	Signature string
	// Transaction is the base64 encoded AuthTransaction for MethodTransaction proofs.
	Transaction string
}

// VerifiedAccount is the result of a successful verification.
type VerifiedAccount struct {
	Address    string
	Method     Method
	VerifiedAt time.Time
}

// ParseAddress decodes a base58 account address into its ed25519 public key.
func ParseAddress(address string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(address))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return ed25519.PublicKey(raw), nil
}

// AddressOf encodes a public key as an account address.
func AddressOf(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}

func challengeMessage(appName, address string, anchor Anchor, nonce string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your account:\n%s\n\n", appName, address)
	fmt.Fprintf(&b, "Anchor: %s\n", anchor.Blockhash)
	fmt.Fprintf(&b, "Height: %d\n", anchor.Height)
	fmt.Fprintf(&b, "Nonce: %s", nonce)
	return b.String()
}
