package wallet

import (
	"fmt"

	"github.com/congo-pay/cashubench/internal/cashu"
	"github.com/congo-pay/cashubench/internal/mint"
	"github.com/congo-pay/cashubench/internal/store"
)

// Factory creates independent wallets: each gets its own seed and its own
// in-memory store.
type Factory struct {
	// Dial returns the mint client for an endpoint.
	Dial  func(endpoint string) (mint.Client, error)
	Seeds SeedProvider
}

// NewFactory returns a factory that talks HTTP to the mint and draws seeds
// from crypto/rand. All wallets share one connection pool.
func NewFactory() *Factory {
	httpClient := mint.DefaultHTTPClient()
	return &Factory{
		Dial: func(endpoint string) (mint.Client, error) {
			return mint.NewHTTPClient(endpoint, httpClient)
		},
		Seeds: CryptoSeeds{},
	}
}

// New creates a wallet for endpoint and unit.
func (f *Factory) New(endpoint string, unit cashu.CurrencyUnit) (*Wallet, error) {
	if _, err := cashu.ParseUnit(string(unit)); err != nil {
		return nil, err
	}

	client, err := f.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial mint: %w", err)
	}

	seeds := f.Seeds
	if seeds == nil {
		seeds = CryptoSeeds{}
	}
	seed, err := seeds.Seed()
	if err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}

	return New(client, endpoint, unit, store.NewMemory(), seed)
}
