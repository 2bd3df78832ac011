package authproof

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// Signer is the wallet capability used to answer a challenge.
type Signer interface {
	Address() string
	SignMessage(message []byte) ([]byte, error)
}

// KeySigner signs with an in-process ed25519 key.
type KeySigner struct {
	key ed25519.PrivateKey
}

// NewKeySigner wraps a private key.
func NewKeySigner(key ed25519.PrivateKey) KeySigner {
	return KeySigner{key: key}
}

// Address returns the account address of the key.
func (s KeySigner) Address() string {
	return AddressOf(s.key.Public().(ed25519.PublicKey))
}

// SignMessage signs raw bytes.
func (s KeySigner) SignMessage(message []byte) ([]byte, error) {
	return ed25519.Sign(s.key, message), nil
}

// SignMemo answers a challenge with a memo-style proof.
func SignMemo(signer Signer, challenge Challenge) (Proof, error) {
	sig, err := signer.SignMessage([]byte(challenge.Message))
	if err != nil {
		return Proof{}, fmt.Errorf("sign memo: %w", err)
	}
	return Proof{
		Address:     signer.Address(),
		Method:      MethodMemo,
		ChallengeID: challenge.ID,
		Signature:   base58.Encode(sig),
	}, nil
}

// BuildTransaction assembles the zero-value self transfer carrying the challenge.
func BuildTransaction(address string, challenge Challenge) (AuthTransaction, error) {
	pub, err := ParseAddress(address)
	if err != nil {
		return AuthTransaction{}, err
	}
	return AuthTransaction{
		FeePayer:        pub,
		RecentBlockhash: challenge.Anchor.Blockhash,
		Memo:            challenge.Message,
	}, nil
}

// SignTransaction answers a challenge with a full-transaction proof.
func SignTransaction(signer Signer, challenge Challenge) (Proof, error) {
	tx, err := BuildTransaction(signer.Address(), challenge)
	if err != nil {
		return Proof{}, err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return Proof{}, err
	}
	sig, err := signer.SignMessage(raw)
	if err != nil {
		return Proof{}, fmt.Errorf("sign transaction: %w", err)
	}
	return Proof{
		Address:     signer.Address(),
		Method:      MethodTransaction,
		ChallengeID: challenge.ID,
		Signature:   base58.Encode(sig),
		Transaction: base64.StdEncoding.EncodeToString(raw),
	}, nil
}
