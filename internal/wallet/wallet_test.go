package wallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/congo-pay/cashubench/internal/cashu"
	"github.com/congo-pay/cashubench/internal/mint"
	"github.com/congo-pay/cashubench/internal/mint/minttest"
	"github.com/congo-pay/cashubench/internal/store"
)

const testMintURL = "http://mint.test"

func testFactory(m *minttest.Mint) *Factory {
	return &Factory{
		Dial:  func(string) (mint.Client, error) { return m, nil },
		Seeds: CryptoSeeds{},
	}
}

func fundedWallet(t *testing.T, m *minttest.Mint, amount cashu.Amount) *Wallet {
	t.Helper()
	ctx := context.Background()

	w, err := testFactory(m).New(testMintURL, cashu.UnitSat)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	quote, err := w.CreateMintQuote(ctx, amount)
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	minted, err := w.Mint(ctx, quote.ID, cashu.DefaultSplit)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if minted != amount {
		t.Fatalf("expected to mint %d, got %d", amount, minted)
	}
	return w
}

func balance(t *testing.T, w *Wallet) cashu.Amount {
	t.Helper()
	b, err := w.TotalBalance(context.Background())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func TestWallet_MintRequiresPaidQuote(t *testing.T) {
	m := minttest.New(minttest.NeverPay())
	ctx := context.Background()

	w, err := testFactory(m).New(testMintURL, cashu.UnitSat)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	quote, err := w.CreateMintQuote(ctx, 64)
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	if _, err := w.Mint(ctx, quote.ID, cashu.DefaultSplit); !errors.Is(err, ErrQuoteNotPaid) {
		t.Fatalf("expected quote not paid, got %v", err)
	}

	if err := m.Pay(quote.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}
	state, err := w.MintQuoteState(ctx, quote.ID)
	if err != nil {
		t.Fatalf("quote state: %v", err)
	}
	if !state.State.Paid() || state.Amount != 64 {
		t.Fatalf("unexpected quote %+v", state)
	}
	if _, err := w.Mint(ctx, quote.ID, cashu.DefaultSplit); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := balance(t, w); got != 64 {
		t.Fatalf("expected balance 64, got %d", got)
	}
}

func TestWallet_MintUnknownQuote(t *testing.T) {
	w, _ := testFactory(minttest.New()).New(testMintURL, cashu.UnitSat)
	if _, err := w.Mint(context.Background(), "unknown", cashu.DefaultSplit); !errors.Is(err, store.ErrQuoteNotFound) {
		t.Fatalf("expected quote not found, got %v", err)
	}
}

func TestWallet_SendThenReceiveRestoresBalance(t *testing.T) {
	m := minttest.New()
	w := fundedWallet(t, m, 100)
	ctx := context.Background()

	for _, amount := range []cashu.Amount{3, 1, 20, 7, 64, 100} {
		token, err := w.Send(ctx, amount, cashu.DefaultSplit)
		if err != nil {
			t.Fatalf("send %d: %v", amount, err)
		}
		if token.Amount() != amount {
			t.Fatalf("expected token of %d, got %d", amount, token.Amount())
		}
		if got := balance(t, w); got != 100-amount {
			t.Fatalf("expected balance %d after send, got %d", 100-amount, got)
		}

		received, err := w.Receive(ctx, token.String(), cashu.DefaultSplit)
		if err != nil {
			t.Fatalf("receive %d: %v", amount, err)
		}
		if received != amount {
			t.Fatalf("expected to receive %d, got %d", amount, received)
		}
		if got := balance(t, w); got != 100 {
			t.Fatalf("expected balance 100 after round trip, got %d", got)
		}
	}
}

func TestWallet_SendInsufficientFunds(t *testing.T) {
	w := fundedWallet(t, minttest.New(), 10)

	_, err := w.Send(context.Background(), 11, cashu.DefaultSplit)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := balance(t, w); got != 10 {
		t.Fatalf("failed send changed balance to %d", got)
	}
}

func TestWallet_SendSplitTarget(t *testing.T) {
	w := fundedWallet(t, minttest.New(), 100)

	token, err := w.Send(context.Background(), 12, cashu.SplitTarget{Value: 4})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	proofs := token.Proofs()
	if len(proofs) != 3 {
		t.Fatalf("expected three notes of 4, got %+v", proofs)
	}
	for _, proof := range proofs {
		if proof.Amount != 4 {
			t.Fatalf("expected notes of 4, got %d", proof.Amount)
		}
	}
}

func TestWallet_ReceiveBetweenWallets(t *testing.T) {
	m := minttest.New()
	ctx := context.Background()
	sender := fundedWallet(t, m, 100)

	receiver, err := testFactory(m).New(testMintURL, cashu.UnitSat)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	token, err := sender.Send(ctx, 30, cashu.DefaultSplit)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := receiver.Receive(ctx, token.String(), cashu.DefaultSplit); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got := balance(t, receiver); got != 30 {
		t.Fatalf("expected receiver balance 30, got %d", got)
	}

	// the token is spent now
	_, err = receiver.Receive(ctx, token.String(), cashu.DefaultSplit)
	var mintErr *mint.Error
	if !errors.As(err, &mintErr) || mintErr.Code != mint.CodeTokenAlreadySpent {
		t.Fatalf("expected already spent error, got %v", err)
	}
	if got := balance(t, receiver); got != 30 {
		t.Fatalf("failed receive changed balance to %d", got)
	}
}

func TestWallet_ReceiveRejectsForeignTokens(t *testing.T) {
	m := minttest.New()
	ctx := context.Background()
	w := fundedWallet(t, m, 100)

	token, err := w.Send(ctx, 5, cashu.DefaultSplit)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	foreignMint := cashu.NewToken("http://other.test", cashu.UnitSat, token.Proofs())
	if _, err := w.Receive(ctx, foreignMint.String(), cashu.DefaultSplit); !errors.Is(err, ErrMintMismatch) {
		t.Fatalf("expected mint mismatch, got %v", err)
	}

	foreignUnit := cashu.NewToken(testMintURL, cashu.UnitUSD, token.Proofs())
	if _, err := w.Receive(ctx, foreignUnit.String(), cashu.DefaultSplit); !errors.Is(err, ErrUnitMismatch) {
		t.Fatalf("expected unit mismatch, got %v", err)
	}

	if _, err := w.Receive(ctx, "cashuAnot-a-token", cashu.DefaultSplit); !errors.Is(err, cashu.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}

	// trailing slash on the token mint is the same mint
	sameMint := cashu.NewToken(testMintURL+"/", cashu.UnitSat, token.Proofs())
	if _, err := w.Receive(ctx, sameMint.String(), cashu.DefaultSplit); err != nil {
		t.Fatalf("receive: %v", err)
	}
}

// recordingClient remembers the last mint exchange it forwarded.
type recordingClient struct {
	mint.Client
	outputs    cashu.BlindedMessages
	signatures cashu.BlindedSignatures
}

func (c *recordingClient) Mint(ctx context.Context, req cashu.PostMintRequest) (cashu.PostMintResponse, error) {
	resp, err := c.Client.Mint(ctx, req)
	c.outputs, c.signatures = req.Outputs, resp.Signatures
	return resp, err
}

func TestWallet_MintSpeaksBlindSignatures(t *testing.T) {
	m := minttest.New()
	client := &recordingClient{Client: m}
	ctx := context.Background()

	w, err := New(client, testMintURL, cashu.UnitSat, store.NewMemory(), bytes.Repeat([]byte{3}, SeedSize))
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	quote, _ := w.CreateMintQuote(ctx, 13)
	if _, err := w.Mint(ctx, quote.ID, cashu.DefaultSplit); err != nil {
		t.Fatalf("mint: %v", err)
	}

	for i, output := range client.outputs {
		b, err := hex.DecodeString(output.B_)
		if err != nil || len(b) != 33 || (b[0] != 0x02 && b[0] != 0x03) {
			t.Fatalf("output %d: B_ %q is not a compressed point", i, output.B_)
		}
		if output.ID != m.KeysetID() {
			t.Fatalf("output %d: expected keyset %s, got %q", i, m.KeysetID(), output.ID)
		}
	}

	proofs, _ := w.store.Proofs(ctx)
	if len(proofs) != len(client.signatures) {
		t.Fatalf("expected %d proofs, got %d", len(client.signatures), len(proofs))
	}
	blinded := make(map[string]bool, len(client.signatures))
	for _, sig := range client.signatures {
		blinded[sig.C_] = true
	}
	for _, proof := range proofs {
		if blinded[proof.C] {
			t.Fatalf("proof of %d stores the blinded signature", proof.Amount)
		}
		if proof.ID != m.KeysetID() {
			t.Fatalf("proof of %d has keyset %q", proof.Amount, proof.ID)
		}
	}

	// the mint only accepts the proofs if C = kY
	token, err := w.Send(ctx, 13, cashu.DefaultSplit)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got, err := w.Receive(ctx, token.String(), cashu.DefaultSplit); err != nil || got != 13 {
		t.Fatalf("receive: got %d, %v", got, err)
	}
}

func TestWallet_NoKeysetForUnit(t *testing.T) {
	m := minttest.New(minttest.WithUnit(cashu.UnitUSD))
	w, err := testFactory(m).New(testMintURL, cashu.UnitSat)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	if _, err := w.Send(context.Background(), 1, cashu.DefaultSplit); !errors.Is(err, ErrNoActiveKeyset) {
		t.Fatalf("expected no active keyset, got %v", err)
	}
}

func TestWallet_PaysInputFees(t *testing.T) {
	m := minttest.New(minttest.WithInputFee(1000))
	ctx := context.Background()
	w := fundedWallet(t, m, 64)

	// 64 is one proof; sending 5 swaps it for 5 plus 58 change at a fee of 1
	token, err := w.Send(ctx, 5, cashu.DefaultSplit)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := balance(t, w); got != 58 {
		t.Fatalf("expected balance 58 after send, got %d", got)
	}

	// 5 arrives as notes of 4 and 1, two inputs cost 2
	received, err := w.Receive(ctx, token.String(), cashu.DefaultSplit)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if received != 3 {
		t.Fatalf("expected to receive 3 after fees, got %d", received)
	}

	// 60 of 61 needs a swap and the remaining 1 cannot cover its fee
	if _, err := w.Send(ctx, 60, cashu.DefaultSplit); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestWallet_SecretsAreDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, SeedSize)
	ctx := context.Background()
	m := minttest.New()

	a, err := New(m, testMintURL, cashu.UnitSat, store.NewMemory(), seed)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	b, _ := New(m, testMintURL, cashu.UnitSat, store.NewMemory(), seed)
	ksA, err := a.activeKeyset(ctx)
	if err != nil {
		t.Fatalf("keyset: %v", err)
	}
	ksB, _ := b.activeKeyset(ctx)

	outA, blindA, err := a.newOutputs(ctx, ksA, []cashu.Amount{1, 2})
	if err != nil {
		t.Fatalf("outputs: %v", err)
	}
	outB, blindB, _ := b.newOutputs(ctx, ksB, []cashu.Amount{1, 2})
	for i := range outA {
		if blindA[i].secret != blindB[i].secret || outA[i].B_ != outB[i].B_ {
			t.Fatalf("output %d differs between wallets with the same seed", i)
		}
	}
	if blindA[0].secret == blindA[1].secret {
		t.Fatal("expected distinct secrets per counter")
	}
	if len(blindA[0].secret) != 64 {
		t.Fatalf("expected a 32 byte hex secret, got %q", blindA[0].secret)
	}

	next, _, _ := a.newOutputs(ctx, ksA, []cashu.Amount{1})
	if next[0].B_ == outA[0].B_ || next[0].B_ == outA[1].B_ {
		t.Fatal("expected counter to advance")
	}
}

func TestWallet_RejectsShortSeed(t *testing.T) {
	if _, err := New(minttest.New(), testMintURL, cashu.UnitSat, store.NewMemory(), []byte{1, 2, 3}); err == nil {
		t.Fatal("expected seed shorter than 16 bytes to be rejected")
	}
}

func TestFactory_IsolatesWallets(t *testing.T) {
	m := minttest.New()
	seeds, err := NewDeterministicSeeds([]byte("master"))
	if err != nil {
		t.Fatalf("seeds: %v", err)
	}
	f := &Factory{Dial: func(string) (mint.Client, error) { return m, nil }, Seeds: seeds}

	a, err := f.New(testMintURL, cashu.UnitSat)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	b, _ := f.New(testMintURL, cashu.UnitSat)
	if a.store == b.store {
		t.Fatal("wallets share a store")
	}
	if a.master.String() == b.master.String() {
		t.Fatal("wallets share a seed")
	}

	if _, err := f.New(testMintURL, cashu.CurrencyUnit("doge")); err == nil {
		t.Fatal("expected unknown unit error")
	}
}

func TestNewFactory_RejectsMalformedEndpoint(t *testing.T) {
	if _, err := NewFactory().New("not a url", cashu.UnitSat); err == nil {
		t.Fatal("expected malformed endpoint error")
	}
}

func TestDeterministicSeeds(t *testing.T) {
	if _, err := NewDeterministicSeeds(nil); err == nil {
		t.Fatal("expected error for empty master")
	}

	first, _ := NewDeterministicSeeds([]byte("master"))
	second, _ := NewDeterministicSeeds([]byte("master"))
	a1, _ := first.Seed()
	a2, _ := first.Seed()
	b1, _ := second.Seed()
	if !bytes.Equal(a1, b1) {
		t.Fatal("expected same first seed from same master")
	}
	if bytes.Equal(a1, a2) {
		t.Fatal("expected successive seeds to differ")
	}
}
