package mint

import (
	"context"
	"fmt"

	"github.com/congo-pay/cashubench/internal/cashu"
)

// Client is the transport to a mint. Implementations must be safe for
// concurrent use since one mint serves every wallet of a run.
type Client interface {
	Keysets(ctx context.Context) (cashu.GetKeysetsResponse, error)
	Keys(ctx context.Context, keysetID string) (cashu.GetKeysResponse, error)
	CreateMintQuote(ctx context.Context, req cashu.PostMintQuoteRequest) (cashu.PostMintQuoteResponse, error)
	MintQuote(ctx context.Context, quoteID string) (cashu.PostMintQuoteResponse, error)
	Mint(ctx context.Context, req cashu.PostMintRequest) (cashu.PostMintResponse, error)
	Swap(ctx context.Context, req cashu.PostSwapRequest) (cashu.PostSwapResponse, error)
}

// Error is a failure reported by the mint itself.
type Error struct {
	Status int
	Detail string
	Code   int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("mint error %d (status %d): %s", e.Code, e.Status, e.Detail)
	}
	return fmt.Sprintf("mint error (status %d): %s", e.Status, e.Detail)
}

// Error codes shared by the mint and its clients.
const (
	CodeOutputAlreadySigned   = 10002
	CodeProofInvalid          = 10003
	CodeTokenAlreadySpent     = 11001
	CodeTransactionUnbalanced = 11002
	CodeUnitNotSupported      = 11005
	CodeKeysetNotFound        = 12001
	CodeQuoteNotPaid          = 20001
	CodeTokensAlreadyIssued   = 20002
	CodeQuoteNotFound         = 20404
)
