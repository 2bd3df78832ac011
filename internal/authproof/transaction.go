package authproof

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const transactionVersion byte = 1

var errMalformedTransaction = errors.New("malformed auth transaction")

// AuthTransaction is a zero-value self transfer carrying the challenge message in
// its memo. Signing it costs a network fee when submitted, but every signer
// supports it.
type AuthTransaction struct {
	FeePayer        ed25519.PublicKey
	RecentBlockhash string
	Lamports        uint64
	Memo            string
}

// MarshalBinary encodes the transaction deterministically:
// version | fee payer (32) | blockhash (u8 len) | lamports (u64 LE) | memo (u16 len).
func (t AuthTransaction) MarshalBinary() ([]byte, error) {
	if len(t.FeePayer) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: fee payer must be %d bytes", errMalformedTransaction, ed25519.PublicKeySize)
	}
	if len(t.RecentBlockhash) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: blockhash too long", errMalformedTransaction)
	}
	if len(t.Memo) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: memo too long", errMalformedTransaction)
	}

	var buf bytes.Buffer
	buf.WriteByte(transactionVersion)
	buf.Write(t.FeePayer)
	buf.WriteByte(byte(len(t.RecentBlockhash)))
	buf.WriteString(t.RecentBlockhash)
	_ = binary.Write(&buf, binary.LittleEndian, t.Lamports)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(t.Memo)))
	buf.WriteString(t.Memo)
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes bytes produced by MarshalBinary.
func (t *AuthTransaction) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil || version != transactionVersion {
		return fmt.Errorf("%w: unknown version", errMalformedTransaction)
	}

	payer := make([]byte, ed25519.PublicKeySize)
	if _, err := io.ReadFull(r, payer); err != nil {
		return fmt.Errorf("%w: fee payer", errMalformedTransaction)
	}

	hashLen, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: blockhash length", errMalformedTransaction)
	}
	hash := make([]byte, hashLen)
	if _, err := io.ReadFull(r, hash); err != nil {
		return fmt.Errorf("%w: blockhash", errMalformedTransaction)
	}

	var lamports uint64
	if err := binary.Read(r, binary.LittleEndian, &lamports); err != nil {
		return fmt.Errorf("%w: lamports", errMalformedTransaction)
	}

	var memoLen uint16
	if err := binary.Read(r, binary.LittleEndian, &memoLen); err != nil {
		return fmt.Errorf("%w: memo length", errMalformedTransaction)
	}
	memo := make([]byte, memoLen)
	if _, err := io.ReadFull(r, memo); err != nil || r.Len() != 0 {
		return fmt.Errorf("%w: memo", errMalformedTransaction)
	}

	t.FeePayer = ed25519.PublicKey(payer)
	t.RecentBlockhash = string(hash)
	t.Lamports = lamports
	t.Memo = string(memo)
	return nil
}
