// Package minttest provides an in-process mint for tests. It can be used
// directly as a mint.Client or served over HTTP with Serve.
package minttest

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/gonuts/crypto"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/congo-pay/cashubench/internal/cashu"
	"github.com/congo-pay/cashubench/internal/mint"
)

var _ mint.Client = (*Mint)(nil)

// MaxOrder is the number of denominations the keyset signs: 1 through
// 2^(MaxOrder-1).
const MaxOrder = 32

type quote struct {
	cashu.MintQuote
	polls int
}

// Mint signs blinded outputs with one secp256k1 key per amount and tracks
// spent secrets in memory.
type Mint struct {
	mu          sync.Mutex
	seed        []byte
	keys        map[cashu.Amount]*secp256k1.PrivateKey
	keysetID    string
	unit        cashu.CurrencyUnit
	inputFeePpk uint
	payAfter    int
	quotes      map[string]*quote
	spent       map[string]struct{}
	signed      map[string]struct{}
	issued      cashu.Amount
	swaps       int
}

// Option configures a Mint.
type Option func(*Mint)

// WithUnit sets the only unit the mint accepts. Defaults to sat.
func WithUnit(unit cashu.CurrencyUnit) Option {
	return func(m *Mint) { m.unit = unit }
}

// WithSeed fixes the keyset private keys. Mints built from the same seed
// share a keyset id.
func WithSeed(seed []byte) Option {
	return func(m *Mint) { m.seed = append([]byte(nil), seed...) }
}

// WithInputFee charges ppk parts per thousand of a unit for every swap input.
func WithInputFee(ppk uint) Option {
	return func(m *Mint) { m.inputFeePpk = ppk }
}

// PayAfterPolls marks a quote paid on its n-th state query. Zero means quotes
// are paid as soon as they are created.
func PayAfterPolls(n int) Option {
	return func(m *Mint) { m.payAfter = n }
}

// NeverPay leaves quotes unpaid until Pay is called.
func NeverPay() Option {
	return func(m *Mint) { m.payAfter = -1 }
}

// New creates a mint that pays quotes immediately unless configured otherwise.
func New(opts ...Option) *Mint {
	m := &Mint{
		unit:   cashu.UnitSat,
		quotes: make(map[string]*quote),
		spent:  make(map[string]struct{}),
		signed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.seed == nil {
		m.seed = make([]byte, 32)
		if _, err := rand.Read(m.seed); err != nil {
			panic(fmt.Sprintf("minttest: read seed: %v", err))
		}
	}

	m.keys = deriveKeys(m.seed)
	public := make(map[uint64]*secp256k1.PublicKey, len(m.keys))
	for amount, key := range m.keys {
		public[uint64(amount)] = key.PubKey()
	}
	m.keysetID = crypto.DeriveKeysetId(public)
	return m
}

func deriveKeys(seed []byte) map[cashu.Amount]*secp256k1.PrivateKey {
	r := hkdf.New(sha256.New, seed, nil, []byte("minttest/keyset"))
	keys := make(map[cashu.Amount]*secp256k1.PrivateKey, MaxOrder)
	for i := 0; i < MaxOrder; i++ {
		var b [32]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			panic(fmt.Sprintf("minttest: derive key %d: %v", i, err))
		}
		keys[cashu.Amount(1)<<i] = secp256k1.PrivKeyFromBytes(b[:])
	}
	return keys
}

// KeysetID returns the id of the mint's only keyset.
func (m *Mint) KeysetID() string {
	return m.keysetID
}

// PublicKey returns the key the mint signs amount with, or nil if the amount
// is not a denomination of the keyset.
func (m *Mint) PublicKey(amount cashu.Amount) *secp256k1.PublicKey {
	if key, ok := m.keys[amount]; ok {
		return key.PubKey()
	}
	return nil
}

// Pay marks an unpaid quote as paid.
func (m *Mint) Pay(quoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[quoteID]
	if !ok {
		return quoteNotFound(quoteID)
	}
	if q.State == cashu.QuoteUnpaid {
		q.State = cashu.QuotePaid
	}
	return nil
}

// Issued returns the total amount minted through paid quotes.
func (m *Mint) Issued() cashu.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issued
}

// Swaps returns the number of successful swaps.
func (m *Mint) Swaps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.swaps
}

// Polls returns how many times a quote's state was queried.
func (m *Mint) Polls(quoteID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.quotes[quoteID]; ok {
		return q.polls
	}
	return 0
}

func (m *Mint) Keysets(context.Context) (cashu.GetKeysetsResponse, error) {
	return cashu.GetKeysetsResponse{Keysets: []cashu.KeysetInfo{{
		ID:          m.keysetID,
		Unit:        m.unit,
		Active:      true,
		InputFeePpk: m.inputFeePpk,
	}}}, nil
}

func (m *Mint) Keys(_ context.Context, keysetID string) (cashu.GetKeysResponse, error) {
	if keysetID != m.keysetID {
		return cashu.GetKeysResponse{}, &mint.Error{
			Status: http.StatusNotFound,
			Code:   mint.CodeKeysetNotFound,
			Detail: fmt.Sprintf("keyset %s not found", keysetID),
		}
	}

	keys := make(map[cashu.Amount]string, len(m.keys))
	for amount, key := range m.keys {
		keys[amount] = hex.EncodeToString(key.PubKey().SerializeCompressed())
	}
	return cashu.GetKeysResponse{Keysets: []cashu.Keyset{{ID: m.keysetID, Unit: m.unit, Keys: keys}}}, nil
}

func (m *Mint) CreateMintQuote(_ context.Context, req cashu.PostMintQuoteRequest) (cashu.PostMintQuoteResponse, error) {
	if req.Amount == 0 {
		return cashu.PostMintQuoteResponse{}, badRequest(0, "amount must be positive")
	}
	if req.Unit != m.unit {
		return cashu.PostMintQuoteResponse{}, badRequest(mint.CodeUnitNotSupported, fmt.Sprintf("unit %q not supported", req.Unit))
	}

	id := uuid.NewString()
	q := &quote{MintQuote: cashu.MintQuote{
		ID:      id,
		Request: fmt.Sprintf("lnbcrt%dn1p%s", req.Amount, strings.ReplaceAll(id, "-", "")),
		Amount:  req.Amount,
		Unit:    req.Unit,
		State:   cashu.QuoteUnpaid,
		Expiry:  time.Now().Add(time.Hour),
	}}
	if m.payAfter == 0 {
		q.State = cashu.QuotePaid
	}

	m.mu.Lock()
	m.quotes[id] = q
	m.mu.Unlock()

	return toQuoteResponse(q.MintQuote), nil
}

func (m *Mint) MintQuote(_ context.Context, quoteID string) (cashu.PostMintQuoteResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[quoteID]
	if !ok {
		return cashu.PostMintQuoteResponse{}, quoteNotFound(quoteID)
	}
	q.polls++
	if q.State == cashu.QuoteUnpaid && m.payAfter > 0 && q.polls >= m.payAfter {
		q.State = cashu.QuotePaid
	}
	return toQuoteResponse(q.MintQuote), nil
}

func (m *Mint) Mint(_ context.Context, req cashu.PostMintRequest) (cashu.PostMintResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[req.Quote]
	if !ok {
		return cashu.PostMintResponse{}, quoteNotFound(req.Quote)
	}
	switch q.State {
	case cashu.QuoteIssued:
		return cashu.PostMintResponse{}, badRequest(mint.CodeTokensAlreadyIssued, "tokens already issued for quote")
	case cashu.QuoteUnpaid:
		return cashu.PostMintResponse{}, badRequest(mint.CodeQuoteNotPaid, "quote not paid")
	}

	points, err := m.checkOutputs(req.Outputs, q.Amount)
	if err != nil {
		return cashu.PostMintResponse{}, err
	}

	q.State = cashu.QuoteIssued
	m.issued += q.Amount
	return cashu.PostMintResponse{Signatures: m.sign(req.Outputs, points)}, nil
}

func (m *Mint) Swap(_ context.Context, req cashu.PostSwapRequest) (cashu.PostSwapResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(req.Inputs) == 0 {
		return cashu.PostSwapResponse{}, badRequest(mint.CodeTransactionUnbalanced, "no inputs provided")
	}

	seen := make(map[string]struct{}, len(req.Inputs))
	for _, proof := range req.Inputs {
		if err := m.verify(proof); err != nil {
			return cashu.PostSwapResponse{}, err
		}
		y, err := crypto.HashToCurve([]byte(proof.Secret))
		if err != nil {
			return cashu.PostSwapResponse{}, badRequest(mint.CodeProofInvalid, err.Error())
		}
		key := hex.EncodeToString(y.SerializeCompressed())
		if _, dup := seen[key]; dup {
			return cashu.PostSwapResponse{}, badRequest(mint.CodeTokenAlreadySpent, "duplicate input")
		}
		if _, spent := m.spent[key]; spent {
			return cashu.PostSwapResponse{}, badRequest(mint.CodeTokenAlreadySpent, "token already spent")
		}
		seen[key] = struct{}{}
	}

	inputs := cashu.Proofs(req.Inputs)
	fee := cashu.InputFee(inputs, map[string]uint{m.keysetID: m.inputFeePpk})
	if inputs.Total() <= fee {
		return cashu.PostSwapResponse{}, badRequest(mint.CodeTransactionUnbalanced, "inputs do not cover the fee")
	}
	points, err := m.checkOutputs(req.Outputs, inputs.Total()-fee)
	if err != nil {
		return cashu.PostSwapResponse{}, err
	}

	for y := range seen {
		m.spent[y] = struct{}{}
	}
	m.swaps++
	return cashu.PostSwapResponse{Signatures: m.sign(req.Outputs, points)}, nil
}

// checkOutputs parses every B_ and checks the outputs add up to want. It must
// be called with m.mu held.
func (m *Mint) checkOutputs(outputs cashu.BlindedMessages, want cashu.Amount) ([]*secp256k1.PublicKey, error) {
	var total cashu.Amount
	points := make([]*secp256k1.PublicKey, len(outputs))
	batch := make(map[string]struct{}, len(outputs))
	for i, output := range outputs {
		if output.ID != m.keysetID {
			return nil, badRequest(mint.CodeKeysetNotFound, fmt.Sprintf("unknown keyset %q", output.ID))
		}
		if _, ok := m.keys[output.Amount]; !ok {
			return nil, badRequest(mint.CodeTransactionUnbalanced, fmt.Sprintf("invalid output amount %d", output.Amount))
		}
		point, err := parsePoint(output.B_)
		if err != nil {
			return nil, badRequest(0, fmt.Sprintf("invalid B_: %v", err))
		}
		key := hex.EncodeToString(point.SerializeCompressed())
		if _, dup := batch[key]; dup {
			return nil, badRequest(mint.CodeOutputAlreadySigned, "duplicate output")
		}
		if _, signed := m.signed[key]; signed {
			return nil, badRequest(mint.CodeOutputAlreadySigned, "output already signed")
		}
		batch[key] = struct{}{}
		points[i] = point
		total += output.Amount
	}
	if total != want {
		return nil, badRequest(mint.CodeTransactionUnbalanced, fmt.Sprintf("outputs total %d, expected %d", total, want))
	}
	return points, nil
}

// sign must be called with m.mu held, after checkOutputs.
func (m *Mint) sign(outputs cashu.BlindedMessages, points []*secp256k1.PublicKey) cashu.BlindedSignatures {
	signatures := make(cashu.BlindedSignatures, len(outputs))
	for i, output := range outputs {
		m.signed[hex.EncodeToString(points[i].SerializeCompressed())] = struct{}{}
		C_ := crypto.SignBlindedMessage(points[i], m.keys[output.Amount])
		signatures[i] = cashu.BlindedSignature{
			Amount: output.Amount,
			C_:     hex.EncodeToString(C_.SerializeCompressed()),
			ID:     m.keysetID,
		}
	}
	return signatures
}

func (m *Mint) verify(proof cashu.Proof) error {
	if proof.ID != m.keysetID {
		return badRequest(mint.CodeKeysetNotFound, fmt.Sprintf("unknown keyset %q", proof.ID))
	}
	k, ok := m.keys[proof.Amount]
	if !ok {
		return badRequest(mint.CodeProofInvalid, fmt.Sprintf("invalid proof amount %d", proof.Amount))
	}
	C, err := parsePoint(proof.C)
	if err != nil || !crypto.Verify(proof.Secret, k, C) {
		return badRequest(mint.CodeProofInvalid, "proof could not be verified")
	}
	return nil
}

// parsePoint decodes a hex encoded compressed secp256k1 point.
func parsePoint(s string) (*secp256k1.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != secp256k1.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("expected %d bytes, got %d", secp256k1.PubKeyBytesLenCompressed, len(b))
	}
	return secp256k1.ParsePubKey(b)
}

func toQuoteResponse(q cashu.MintQuote) cashu.PostMintQuoteResponse {
	return cashu.PostMintQuoteResponse{
		Quote:   q.ID,
		Request: q.Request,
		State:   q.State,
		Expiry:  q.Expiry.Unix(),
	}
}

func badRequest(code int, detail string) *mint.Error {
	return &mint.Error{Status: http.StatusBadRequest, Code: code, Detail: detail}
}

func quoteNotFound(id string) *mint.Error {
	return &mint.Error{Status: http.StatusNotFound, Code: mint.CodeQuoteNotFound, Detail: fmt.Sprintf("quote %s not found", id)}
}
