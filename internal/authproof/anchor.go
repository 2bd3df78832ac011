package authproof

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"time"

	"github.com/mr-tron/base58"
)

// AnchorSource reads ledger state used to bound challenge freshness.
type AnchorSource interface {
	// Latest returns a recent blockhash together with the height it was observed at.
	Latest(ctx context.Context) (Anchor, error)
	// BlockHeight returns the current ledger height.
	BlockHeight(ctx context.Context) (uint64, error)
}

// LocalLedger is an in-process ledger clock. Height advances by one block per slot
// duration and can be moved forward manually. Used in development and tests.
type LocalLedger struct {
	mu      sync.Mutex
	genesis time.Time
	slot    time.Duration
	offset  uint64
	now     func() time.Time
}

// NewLocalLedger creates a ledger clock. A zero slot duration freezes the height
// until Advance is called.
func NewLocalLedger(slot time.Duration) *LocalLedger {
	return &LocalLedger{genesis: time.Now(), slot: slot, now: time.Now}
}

// Latest implements AnchorSource.
func (l *LocalLedger) Latest(_ context.Context) (Anchor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.height()
	return Anchor{Blockhash: localBlockhash(h), Height: h}, nil
}

// BlockHeight implements AnchorSource.
func (l *LocalLedger) BlockHeight(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height(), nil
}

// Advance moves the ledger forward by n blocks.
func (l *LocalLedger) Advance(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offset += n
}

func (l *LocalLedger) height() uint64 {
	h := l.offset
	if l.slot > 0 {
		h += uint64(l.now().Sub(l.genesis) / l.slot)
	}
	return h
}

func localBlockhash(height uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	sum := sha256.Sum256(append([]byte("local-ledger:"), buf[:]...))
	return base58.Encode(sum[:])
}
