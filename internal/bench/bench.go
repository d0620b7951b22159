// Package bench drives many independent wallets through send and receive
// round trips against one mint and reports the aggregate throughput.
package bench

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/congo-pay/cashubench/internal/cashu"
)

// Wallet is the capability surface the benchmark needs from a wallet client.
type Wallet interface {
	CreateMintQuote(ctx context.Context, amount cashu.Amount) (cashu.MintQuote, error)
	MintQuoteState(ctx context.Context, quoteID string) (cashu.MintQuote, error)
	Mint(ctx context.Context, quoteID string, split cashu.SplitTarget) (cashu.Amount, error)
	Send(ctx context.Context, amount cashu.Amount, split cashu.SplitTarget) (cashu.Token, error)
	Receive(ctx context.Context, token string, split cashu.SplitTarget) (cashu.Amount, error)
	TotalBalance(ctx context.Context) (cashu.Amount, error)
}

// WalletFactory creates a wallet with its own seed and store.
type WalletFactory interface {
	NewWallet(endpoint string, unit cashu.CurrencyUnit) (Wallet, error)
}

// FactoryFunc adapts a function to WalletFactory.
type FactoryFunc func(endpoint string, unit cashu.CurrencyUnit) (Wallet, error)

func (f FactoryFunc) NewWallet(endpoint string, unit cashu.CurrencyUnit) (Wallet, error) {
	return f(endpoint, unit)
}

// SendPolicy picks the amount of every send in the worker loop.
type SendPolicy struct {
	Random bool
	Fixed  cashu.Amount
	Min    cashu.Amount
	Max    cashu.Amount
}

// DefaultSendPolicy sends a uniformly random amount between 1 and 20.
var DefaultSendPolicy = SendPolicy{Random: true, Fixed: 3, Min: 1, Max: 20}

// Next returns the amount of the next send.
func (p SendPolicy) Next() cashu.Amount {
	if !p.Random {
		return p.Fixed
	}
	return p.Min + cashu.Amount(rand.Uint64N(uint64(p.Max-p.Min)+1))
}

// Largest is the biggest amount Next can return.
func (p SendPolicy) Largest() cashu.Amount {
	if p.Random {
		return p.Max
	}
	return p.Fixed
}

func (p SendPolicy) validate() error {
	if !p.Random {
		if p.Fixed == 0 {
			return invalid("Send.Fixed", "must be positive")
		}
		return nil
	}
	if p.Min == 0 {
		return invalid("Send.Min", "must be positive")
	}
	if p.Min > p.Max {
		return invalid("Send.Min", fmt.Sprintf("%d exceeds maximum %d", p.Min, p.Max))
	}
	return nil
}

// MaxWalletCount bounds the number of concurrent workers in a run.
const MaxWalletCount = 4096

// InvalidOptionError reports which option failed validation. Option is the
// field path within Options, for example "Send.Max".
type InvalidOptionError struct {
	Option string
	Reason string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Option, e.Reason)
}

func invalid(option, reason string) error {
	return &InvalidOptionError{Option: option, Reason: reason}
}

// Options parameterise a run.
type Options struct {
	MintURL        string
	Unit           cashu.CurrencyUnit
	MintAmount     cashu.Amount
	WalletCount    int
	StartingAmount cashu.Amount
	Duration       time.Duration
	PollInterval   time.Duration
	// QuoteTimeout bounds the wait for the funding quote. Zero waits forever.
	QuoteTimeout time.Duration
	Send         SendPolicy
	// RateLimit caps round trips per second per worker. Zero is unthrottled.
	RateLimit float64
}

// DefaultOptions returns the parameters of the reference run.
func DefaultOptions() Options {
	return Options{
		MintURL:        "https://mint.thesimplekid.dev",
		Unit:           cashu.UnitSat,
		MintAmount:     100_000,
		WalletCount:    16,
		StartingAmount: 100,
		Duration:       60 * time.Second,
		PollInterval:   5 * time.Second,
		Send:           DefaultSendPolicy,
	}
}

// Validate reports the first inconsistency in o as an *InvalidOptionError.
func (o Options) Validate() error {
	switch {
	case o.MintURL == "":
		return invalid("MintURL", "is required")
	case o.WalletCount <= 0:
		return invalid("WalletCount", "must be positive")
	case o.WalletCount > MaxWalletCount:
		return invalid("WalletCount", fmt.Sprintf("must be at most %d", MaxWalletCount))
	case o.StartingAmount == 0:
		return invalid("StartingAmount", "must be positive")
	case o.Duration <= 0:
		return invalid("Duration", "must be positive")
	case o.PollInterval <= 0:
		return invalid("PollInterval", "must be positive")
	case o.QuoteTimeout < 0:
		return invalid("QuoteTimeout", "must not be negative")
	case o.RateLimit < 0:
		return invalid("RateLimit", "must not be negative")
	}
	if err := o.Send.validate(); err != nil {
		return err
	}
	if largest := o.Send.Largest(); largest > o.StartingAmount {
		option := "Send.Fixed"
		if o.Send.Random {
			option = "Send.Max"
		}
		return invalid(option, fmt.Sprintf("%d exceeds starting amount %d", largest, o.StartingAmount))
	}
	// divide rather than multiply so large counts cannot wrap
	if o.StartingAmount > o.MintAmount/cashu.Amount(o.WalletCount) {
		return invalid("MintAmount", fmt.Sprintf("%d cannot fund %d wallets of %d", o.MintAmount, o.WalletCount, o.StartingAmount))
	}
	return nil
}
