package wallet

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/gonuts/cashu/nuts/nut13"
	"github.com/elnosh/gonuts/crypto"

	"github.com/congo-pay/cashubench/internal/cashu"
)

// blinding is what the wallet keeps for an output until the mint signs it.
type blinding struct {
	secret string
	r      *secp256k1.PrivateKey
}

// newOutputs reserves one counter value per amount on ks and derives the
// secret, blinding factor and B_ for each.
func (w *Wallet) newOutputs(ctx context.Context, ks *keyset, amounts []cashu.Amount) (cashu.BlindedMessages, []blinding, error) {
	start, err := w.store.NextCounter(ctx, ks.id, uint32(len(amounts)))
	if err != nil {
		return nil, nil, err
	}

	outputs := make(cashu.BlindedMessages, len(amounts))
	blindings := make([]blinding, len(amounts))
	for i, amount := range amounts {
		counter := start + uint32(i)
		secret, err := nut13.DeriveSecret(ks.path, counter)
		if err != nil {
			return nil, nil, fmt.Errorf("derive secret %d: %w", counter, err)
		}
		r, err := nut13.DeriveBlindingFactor(ks.path, counter)
		if err != nil {
			return nil, nil, fmt.Errorf("derive blinding factor %d: %w", counter, err)
		}
		B_, r, err := crypto.BlindMessage(secret, r)
		if err != nil {
			return nil, nil, fmt.Errorf("blind output %d: %w", counter, err)
		}

		outputs[i] = cashu.BlindedMessage{
			Amount: amount,
			ID:     ks.id,
			B_:     hex.EncodeToString(B_.SerializeCompressed()),
		}
		blindings[i] = blinding{secret: secret, r: r}
	}
	return outputs, blindings, nil
}

// constructProofs unblinds the mint's signatures C_ = kB_ into C = kY using
// the keyset public key K for each amount.
func constructProofs(ks *keyset, signatures cashu.BlindedSignatures, outputs cashu.BlindedMessages, blindings []blinding) (cashu.Proofs, error) {
	if len(signatures) != len(outputs) {
		return nil, fmt.Errorf("mint returned %d signatures for %d outputs", len(signatures), len(outputs))
	}

	proofs := make(cashu.Proofs, len(signatures))
	for i, sig := range signatures {
		if sig.Amount != outputs[i].Amount {
			return nil, fmt.Errorf("signature %d amount %d does not match output amount %d", i, sig.Amount, outputs[i].Amount)
		}
		if sig.ID != ks.id {
			return nil, fmt.Errorf("signature %d from keyset %s, expected %s", i, sig.ID, ks.id)
		}
		K, ok := ks.keys[sig.Amount]
		if !ok {
			return nil, fmt.Errorf("keyset %s has no key for amount %d", ks.id, sig.Amount)
		}
		C_, err := parsePoint(sig.C_)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}

		C := crypto.UnblindSignature(C_, blindings[i].r, K)
		proofs[i] = cashu.Proof{
			Amount: sig.Amount,
			ID:     sig.ID,
			Secret: blindings[i].secret,
			C:      hex.EncodeToString(C.SerializeCompressed()),
		}
	}
	return proofs, nil
}
