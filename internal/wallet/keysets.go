package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/gonuts/cashu/nuts/nut13"

	"github.com/congo-pay/cashubench/internal/cashu"
)

// ErrNoActiveKeyset occurs when the mint has no active keyset in the wallet's unit.
var ErrNoActiveKeyset = errors.New("mint has no active keyset for unit")

type keyset struct {
	id   string
	keys map[cashu.Amount]*secp256k1.PublicKey
	// path is the NUT-13 derivation root m/129372'/0'/keyset'.
	path *hdkeychain.ExtendedKey
}

// activeKeyset returns the keyset new outputs are created on, fetching the
// mint's keysets on first use. It must be called with w.mu held.
func (w *Wallet) activeKeyset(ctx context.Context) (*keyset, error) {
	if w.active != nil {
		return w.active, nil
	}

	resp, err := w.client.Keysets(ctx)
	if err != nil {
		return nil, fmt.Errorf("keysets: %w", err)
	}
	fees := make(map[string]uint, len(resp.Keysets))
	activeID := ""
	for _, info := range resp.Keysets {
		fees[info.ID] = info.InputFeePpk
		if activeID == "" && info.Active && info.Unit == w.unit {
			activeID = info.ID
		}
	}
	if activeID == "" {
		return nil, fmt.Errorf("%w %s", ErrNoActiveKeyset, w.unit)
	}

	ks, err := w.loadKeyset(ctx, activeID)
	if err != nil {
		return nil, err
	}
	w.fees = fees
	w.active = ks
	return ks, nil
}

func (w *Wallet) loadKeyset(ctx context.Context, id string) (*keyset, error) {
	resp, err := w.client.Keys(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("keys for keyset %s: %w", id, err)
	}

	for _, ks := range resp.Keysets {
		if ks.ID != id {
			continue
		}
		keys := make(map[cashu.Amount]*secp256k1.PublicKey, len(ks.Keys))
		for amount, encoded := range ks.Keys {
			key, err := parsePoint(encoded)
			if err != nil {
				return nil, fmt.Errorf("keyset %s amount %d: %w", id, amount, err)
			}
			keys[amount] = key
		}
		path, err := nut13.DeriveKeysetPath(w.master, id)
		if err != nil {
			return nil, fmt.Errorf("derive keyset path %s: %w", id, err)
		}
		return &keyset{id: id, keys: keys, path: path}, nil
	}
	return nil, fmt.Errorf("mint did not return keys for keyset %s", id)
}

func parsePoint(s string) (*secp256k1.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != secp256k1.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("expected %d byte compressed point, got %d bytes", secp256k1.PubKeyBytesLenCompressed, len(b))
	}
	return secp256k1.ParsePubKey(b)
}
