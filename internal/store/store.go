package store

import (
	"context"
	"errors"

	"github.com/congo-pay/cashubench/internal/cashu"
)

var (
	// ErrDuplicateProof indicates a proof with the same secret is already stored.
	ErrDuplicateProof = errors.New("duplicate proof")

	// ErrProofNotFound occurs when removing a proof the store does not hold.
	ErrProofNotFound = errors.New("proof not found")

	// ErrQuoteNotFound occurs when a mint quote was never saved.
	ErrQuoteNotFound = errors.New("mint quote not found")
)

// Store holds the private state of one wallet: its unspent proofs, the
// secret derivation counters and the mint quotes it requested.
type Store interface {
	AddProofs(ctx context.Context, proofs cashu.Proofs) error
	Proofs(ctx context.Context) (cashu.Proofs, error)
	RemoveProofs(ctx context.Context, secrets []string) error
	Balance(ctx context.Context) (cashu.Amount, error)

	// NextCounter reserves n consecutive derivation counter values for a
	// keyset and returns the first.
	NextCounter(ctx context.Context, keysetID string, n uint32) (uint32, error)

	SaveMintQuote(ctx context.Context, quote cashu.MintQuote) error
	MintQuote(ctx context.Context, id string) (cashu.MintQuote, error)
}
