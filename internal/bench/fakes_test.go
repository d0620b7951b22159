package bench

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/cashubench/internal/cashu"
)

const fakeMintURL = "http://fake.mint"

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

func (c *manualClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeWallet keeps a plain balance and issues single-proof tokens.
type fakeWallet struct {
	mu       sync.Mutex
	balance  cashu.Amount
	quotes   map[string]int
	payAfter int

	// clock, when set, advances by sendCost on every send.
	clock    *manualClock
	sendCost time.Duration

	sends      int
	receives   int
	failSendAt int
	badTokenAt int
	createErr  error
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{quotes: make(map[string]int)}
}

func (w *fakeWallet) CreateMintQuote(_ context.Context, amount cashu.Amount) (cashu.MintQuote, error) {
	if w.createErr != nil {
		return cashu.MintQuote{}, w.createErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	id := uuid.NewString()
	w.quotes[id] = 0
	return cashu.MintQuote{ID: id, Request: "lnbcrt" + id, Amount: amount, Unit: cashu.UnitSat, State: cashu.QuoteUnpaid}, nil
}

func (w *fakeWallet) MintQuoteState(_ context.Context, quoteID string) (cashu.MintQuote, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	polls, ok := w.quotes[quoteID]
	if !ok {
		return cashu.MintQuote{}, errors.New("unknown quote")
	}
	polls++
	w.quotes[quoteID] = polls

	state := cashu.QuoteUnpaid
	if w.payAfter >= 0 && polls > w.payAfter {
		state = cashu.QuotePaid
	}
	return cashu.MintQuote{ID: quoteID, State: state}, nil
}

func (w *fakeWallet) Mint(_ context.Context, quoteID string, _ cashu.SplitTarget) (cashu.Amount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.quotes[quoteID]; !ok {
		return 0, errors.New("unknown quote")
	}
	w.balance += 100_000
	return 100_000, nil
}

func (w *fakeWallet) Send(_ context.Context, amount cashu.Amount, _ cashu.SplitTarget) (cashu.Token, error) {
	if w.clock != nil {
		w.clock.Advance(w.sendCost)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.sends++
	if w.sends == w.failSendAt {
		return cashu.Token{}, errors.New("mint unavailable")
	}
	if amount > w.balance {
		return cashu.Token{}, errors.New("insufficient funds")
	}
	w.balance -= amount

	secret := uuid.NewString()
	if w.sends == w.badTokenAt {
		secret = ""
	}
	return cashu.NewToken(fakeMintURL, cashu.UnitSat, cashu.Proofs{{Amount: amount, ID: "00fake", Secret: secret, C: "c"}}), nil
}

func (w *fakeWallet) Receive(_ context.Context, token string, _ cashu.SplitTarget) (cashu.Amount, error) {
	decoded, err := cashu.DecodeToken(token)
	if err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.receives++
	w.balance += decoded.Amount()
	return decoded.Amount(), nil
}

func (w *fakeWallet) TotalBalance(context.Context) (cashu.Amount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance, nil
}

func (w *fakeWallet) counts() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sends, w.receives
}

// fakeFactory returns top for the first wallet and fresh fake wallets after.
type fakeFactory struct {
	mu      sync.Mutex
	top     *fakeWallet
	made    []*fakeWallet
	prepare func(w *fakeWallet)
}

func (f *fakeFactory) NewWallet(endpoint string, _ cashu.CurrencyUnit) (Wallet, error) {
	if endpoint == "" {
		return nil, errors.New("empty endpoint")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.top != nil && len(f.made) == 0 {
		f.made = append(f.made, f.top)
		return f.top, nil
	}
	w := newFakeWallet()
	if f.prepare != nil {
		f.prepare(w)
	}
	f.made = append(f.made, w)
	return w, nil
}
