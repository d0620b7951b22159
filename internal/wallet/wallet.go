package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/congo-pay/cashubench/internal/cashu"
	"github.com/congo-pay/cashubench/internal/mint"
	"github.com/congo-pay/cashubench/internal/store"
)

var (
	// ErrInsufficientFunds indicates the wallet holds less than the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrMintMismatch occurs when a token was issued by a different mint.
	ErrMintMismatch = errors.New("token is from a different mint")

	// ErrUnitMismatch occurs when a token is denominated in a different unit.
	ErrUnitMismatch = errors.New("token unit does not match wallet unit")

	// ErrQuoteNotPaid occurs when minting against a quote that is still unpaid.
	ErrQuoteNotPaid = errors.New("mint quote not paid")
)

// Wallet holds proofs issued by one mint in one unit. Operations on a wallet
// are serialised.
type Wallet struct {
	mu      sync.Mutex
	client  mint.Client
	mintURL string
	unit    cashu.CurrencyUnit
	store   store.Store
	master  *hdkeychain.ExtendedKey

	// loaded from the mint on first use
	active *keyset
	fees   map[string]uint
}

// New builds a wallet on top of an existing mint client and store. The seed
// is the BIP32 master seed every secret and blinding factor derives from;
// it must be 16 to 64 bytes.
func New(client mint.Client, endpoint string, unit cashu.CurrencyUnit, st store.Store, seed []byte) (*Wallet, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	return &Wallet{
		client:  client,
		mintURL: normalizeURL(endpoint),
		unit:    unit,
		store:   st,
		master:  master,
	}, nil
}

// MintURL returns the endpoint stamped on tokens the wallet sends.
func (w *Wallet) MintURL() string {
	return w.mintURL
}

// Unit returns the wallet's currency unit.
func (w *Wallet) Unit() cashu.CurrencyUnit {
	return w.unit
}

// CreateMintQuote asks the mint for a payment request worth amount.
func (w *Wallet) CreateMintQuote(ctx context.Context, amount cashu.Amount) (cashu.MintQuote, error) {
	if amount == 0 {
		return cashu.MintQuote{}, errors.New("quote amount must be positive")
	}

	resp, err := w.client.CreateMintQuote(ctx, cashu.PostMintQuoteRequest{Amount: amount, Unit: w.unit})
	if err != nil {
		return cashu.MintQuote{}, fmt.Errorf("create mint quote: %w", err)
	}

	quote := cashu.MintQuote{
		ID:      resp.Quote,
		Request: resp.Request,
		Amount:  amount,
		Unit:    w.unit,
		State:   resp.State,
		Expiry:  time.Unix(resp.Expiry, 0).UTC(),
	}
	if err := w.store.SaveMintQuote(ctx, quote); err != nil {
		return cashu.MintQuote{}, err
	}
	return quote, nil
}

// MintQuoteState fetches the current state of a quote from the mint.
func (w *Wallet) MintQuoteState(ctx context.Context, quoteID string) (cashu.MintQuote, error) {
	resp, err := w.client.MintQuote(ctx, quoteID)
	if err != nil {
		return cashu.MintQuote{}, fmt.Errorf("mint quote state: %w", err)
	}

	quote, err := w.store.MintQuote(ctx, quoteID)
	if errors.Is(err, store.ErrQuoteNotFound) {
		quote = cashu.MintQuote{ID: quoteID, Unit: w.unit}
	} else if err != nil {
		return cashu.MintQuote{}, err
	}
	quote.Request = resp.Request
	quote.State = resp.State
	quote.Expiry = time.Unix(resp.Expiry, 0).UTC()

	if err := w.store.SaveMintQuote(ctx, quote); err != nil {
		return cashu.MintQuote{}, err
	}
	return quote, nil
}

// Mint redeems a paid quote for proofs split according to split and returns
// the amount added to the wallet.
func (w *Wallet) Mint(ctx context.Context, quoteID string, split cashu.SplitTarget) (cashu.Amount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	quote, err := w.store.MintQuote(ctx, quoteID)
	if err != nil {
		return 0, fmt.Errorf("mint quote %s: %w", quoteID, err)
	}
	if !quote.State.Paid() {
		if quote, err = w.MintQuoteState(ctx, quoteID); err != nil {
			return 0, err
		}
		if !quote.State.Paid() {
			return 0, ErrQuoteNotPaid
		}
	}

	ks, err := w.activeKeyset(ctx)
	if err != nil {
		return 0, err
	}
	outputs, blindings, err := w.newOutputs(ctx, ks, split.Split(quote.Amount))
	if err != nil {
		return 0, err
	}
	resp, err := w.client.Mint(ctx, cashu.PostMintRequest{Quote: quoteID, Outputs: outputs})
	if err != nil {
		return 0, fmt.Errorf("mint: %w", err)
	}
	proofs, err := constructProofs(ks, resp.Signatures, outputs, blindings)
	if err != nil {
		return 0, err
	}
	if err := w.store.AddProofs(ctx, proofs); err != nil {
		return 0, err
	}

	quote.State = cashu.QuoteIssued
	if err := w.store.SaveMintQuote(ctx, quote); err != nil {
		return 0, err
	}
	return proofs.Total(), nil
}

// Send takes amount out of the wallet and returns it as a token. Proofs are
// selected smallest first; unless they add up to amount exactly they are
// swapped into send and change outputs, and the swap's input fee comes out
// of the change.
func (w *Wallet) Send(ctx context.Context, amount cashu.Amount, split cashu.SplitTarget) (cashu.Token, error) {
	if amount == 0 {
		return cashu.Token{}, errors.New("send amount must be positive")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ks, err := w.activeKeyset(ctx)
	if err != nil {
		return cashu.Token{}, err
	}
	available, err := w.store.Proofs(ctx)
	if err != nil {
		return cashu.Token{}, err
	}
	selected, err := selectProofs(available, amount, w.fees)
	if err != nil {
		return cashu.Token{}, err
	}

	total := selected.Total()
	if total == amount {
		if err := w.store.RemoveProofs(ctx, selected.Secrets()); err != nil {
			return cashu.Token{}, err
		}
		return cashu.NewToken(w.mintURL, w.unit, selected), nil
	}

	sendAmounts := split.Split(amount)
	changeAmounts := cashu.DefaultSplit.Split(total - amount - cashu.InputFee(selected, w.fees))
	outputs, blindings, err := w.newOutputs(ctx, ks, append(sendAmounts, changeAmounts...))
	if err != nil {
		return cashu.Token{}, err
	}

	resp, err := w.client.Swap(ctx, cashu.PostSwapRequest{Inputs: selected, Outputs: outputs})
	if err != nil {
		return cashu.Token{}, fmt.Errorf("swap for send: %w", err)
	}
	proofs, err := constructProofs(ks, resp.Signatures, outputs, blindings)
	if err != nil {
		return cashu.Token{}, err
	}

	if err := w.store.RemoveProofs(ctx, selected.Secrets()); err != nil {
		return cashu.Token{}, err
	}
	if err := w.store.AddProofs(ctx, proofs[len(sendAmounts):]); err != nil {
		return cashu.Token{}, err
	}
	return cashu.NewToken(w.mintURL, w.unit, proofs[:len(sendAmounts)]), nil
}

// Receive redeems a serialised token into fresh proofs and returns the amount
// received, which is the token amount less the mint's input fee.
func (w *Wallet) Receive(ctx context.Context, token string, split cashu.SplitTarget) (cashu.Amount, error) {
	decoded, err := cashu.DecodeToken(token)
	if err != nil {
		return 0, err
	}
	for _, mintURL := range decoded.Mints() {
		if normalizeURL(mintURL) != w.mintURL {
			return 0, fmt.Errorf("%w: %s", ErrMintMismatch, mintURL)
		}
	}
	if decoded.Unit != "" && decoded.Unit != w.unit {
		return 0, fmt.Errorf("%w: %s", ErrUnitMismatch, decoded.Unit)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ks, err := w.activeKeyset(ctx)
	if err != nil {
		return 0, err
	}
	inputs := decoded.Proofs()
	fee := cashu.InputFee(inputs, w.fees)
	if inputs.Total() <= fee {
		return 0, fmt.Errorf("%w: token of %d does not cover fee %d", ErrInsufficientFunds, inputs.Total(), fee)
	}
	outputs, blindings, err := w.newOutputs(ctx, ks, split.Split(inputs.Total()-fee))
	if err != nil {
		return 0, err
	}
	resp, err := w.client.Swap(ctx, cashu.PostSwapRequest{Inputs: inputs, Outputs: outputs})
	if err != nil {
		return 0, fmt.Errorf("swap for receive: %w", err)
	}
	proofs, err := constructProofs(ks, resp.Signatures, outputs, blindings)
	if err != nil {
		return 0, err
	}
	if err := w.store.AddProofs(ctx, proofs); err != nil {
		return 0, err
	}
	return proofs.Total(), nil
}

// TotalBalance returns the sum of the unspent proofs held by the wallet.
func (w *Wallet) TotalBalance(ctx context.Context) (cashu.Amount, error) {
	return w.store.Balance(ctx)
}

// selectProofs picks the inputs for sending amount. A set that adds up to
// amount exactly is sent as is; any other set must also cover the input fee
// of the swap it goes through.
func selectProofs(available cashu.Proofs, amount cashu.Amount, fees map[string]uint) (cashu.Proofs, error) {
	if have := available.Total(); have < amount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, have, amount)
	}

	ascending := make(cashu.Proofs, len(available))
	copy(ascending, available)
	sort.SliceStable(ascending, func(i, j int) bool {
		return ascending[i].Amount < ascending[j].Amount
	})

	// an exact single proof beats any combination
	for _, proof := range ascending {
		if proof.Amount == amount {
			return cashu.Proofs{proof}, nil
		}
	}

	var selected cashu.Proofs
	var total cashu.Amount
	for _, proof := range ascending {
		selected = append(selected, proof)
		total += proof.Amount
		if total == amount || total >= amount+cashu.InputFee(selected, fees) {
			break
		}
	}
	if total != amount && total < amount+cashu.InputFee(selected, fees) {
		return nil, fmt.Errorf("%w: have %d, need %d plus fee", ErrInsufficientFunds, total, amount)
	}
	return selected, nil
}

func normalizeURL(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}
