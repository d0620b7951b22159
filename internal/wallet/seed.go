package wallet

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"
)

// SeedSize is the length of seeds produced by CryptoSeeds.
const SeedSize = 32

// SeedProvider hands out the secret seed of each new wallet.
type SeedProvider interface {
	Seed() ([]byte, error)
}

// CryptoSeeds draws seeds from crypto/rand.
type CryptoSeeds struct{}

func (CryptoSeeds) Seed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// DeterministicSeeds derives the n-th seed from a master value so runs can be
// reproduced. It is safe for concurrent use.
type DeterministicSeeds struct {
	mu     sync.Mutex
	master []byte
	next   uint64
}

// NewDeterministicSeeds returns a provider whose seeds depend only on master
// and the order in which they are requested.
func NewDeterministicSeeds(master []byte) (*DeterministicSeeds, error) {
	if len(master) == 0 {
		return nil, errors.New("master seed is empty")
	}
	return &DeterministicSeeds{master: append([]byte(nil), master...)}, nil
}

func (d *DeterministicSeeds) Seed() ([]byte, error) {
	d.mu.Lock()
	n := d.next
	d.next++
	d.mu.Unlock()

	h := sha256.New()
	h.Write(d.master)
	var index [8]byte
	binary.BigEndian.PutUint64(index[:], n)
	h.Write(index[:])
	return h.Sum(nil), nil
}
