package store

import (
	"context"
	"sort"
	"sync"

	"github.com/congo-pay/cashubench/internal/cashu"
)

type memoryStore struct {
	mu       sync.RWMutex
	proofs   map[string]cashu.Proof
	balance  cashu.Amount
	counters map[string]uint32
	quotes   map[string]cashu.MintQuote
}

// NewMemory creates an empty in-memory store. Its contents vanish with the
// process.
func NewMemory() Store {
	return &memoryStore{
		proofs:   make(map[string]cashu.Proof),
		counters: make(map[string]uint32),
		quotes:   make(map[string]cashu.MintQuote),
	}
}

func (s *memoryStore) AddProofs(_ context.Context, proofs cashu.Proofs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(proofs))
	for _, proof := range proofs {
		if _, exists := s.proofs[proof.Secret]; exists {
			return ErrDuplicateProof
		}
		if _, exists := seen[proof.Secret]; exists {
			return ErrDuplicateProof
		}
		seen[proof.Secret] = struct{}{}
	}

	for _, proof := range proofs {
		s.proofs[proof.Secret] = proof
		s.balance += proof.Amount
	}
	return nil
}

// Proofs returns the stored proofs ordered by descending amount.
func (s *memoryStore) Proofs(_ context.Context) (cashu.Proofs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proofs := make(cashu.Proofs, 0, len(s.proofs))
	for _, proof := range s.proofs {
		proofs = append(proofs, proof)
	}
	sort.Slice(proofs, func(x, y int) bool {
		if proofs[x].Amount != proofs[y].Amount {
			return proofs[x].Amount > proofs[y].Amount
		}
		return proofs[x].Secret < proofs[y].Secret
	})
	return proofs, nil
}

func (s *memoryStore) RemoveProofs(_ context.Context, secrets []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, secret := range secrets {
		if _, exists := s.proofs[secret]; !exists {
			return ErrProofNotFound
		}
	}

	for _, secret := range secrets {
		s.balance -= s.proofs[secret].Amount
		delete(s.proofs, secret)
	}
	return nil
}

func (s *memoryStore) Balance(_ context.Context) (cashu.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance, nil
}

func (s *memoryStore) NextCounter(_ context.Context, keysetID string, n uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.counters[keysetID]
	s.counters[keysetID] = start + n
	return start, nil
}

func (s *memoryStore) SaveMintQuote(_ context.Context, quote cashu.MintQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[quote.ID] = quote
	return nil
}

func (s *memoryStore) MintQuote(_ context.Context, id string) (cashu.MintQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quote, ok := s.quotes[id]
	if !ok {
		return cashu.MintQuote{}, ErrQuoteNotFound
	}
	return quote, nil
}
