package minttest

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/gonuts/crypto"
	"github.com/google/uuid"

	"github.com/congo-pay/cashubench/internal/cashu"
)

// Blinded is an output together with the secret and blinding factor needed
// to turn its signature into a proof.
type Blinded struct {
	Output cashu.BlindedMessage
	Secret string
	R      *secp256k1.PrivateKey
}

// Blind builds one output per amount for keysetID from random secrets.
func Blind(keysetID string, amounts ...cashu.Amount) ([]Blinded, error) {
	blinded := make([]Blinded, len(amounts))
	for i, amount := range amounts {
		r, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		secret := uuid.NewString()
		B_, r, err := crypto.BlindMessage(secret, r)
		if err != nil {
			return nil, err
		}
		blinded[i] = Blinded{
			Output: cashu.BlindedMessage{Amount: amount, ID: keysetID, B_: hex.EncodeToString(B_.SerializeCompressed())},
			Secret: secret,
			R:      r,
		}
	}
	return blinded, nil
}

// Outputs returns the blinded messages in order.
func Outputs(blinded []Blinded) cashu.BlindedMessages {
	outputs := make(cashu.BlindedMessages, len(blinded))
	for i, b := range blinded {
		outputs[i] = b.Output
	}
	return outputs
}

// Unblind turns the mint's signatures over blinded into proofs.
func (m *Mint) Unblind(signatures cashu.BlindedSignatures, blinded []Blinded) (cashu.Proofs, error) {
	if len(signatures) != len(blinded) {
		return nil, fmt.Errorf("%d signatures for %d outputs", len(signatures), len(blinded))
	}
	proofs := make(cashu.Proofs, len(signatures))
	for i, sig := range signatures {
		K := m.PublicKey(sig.Amount)
		if K == nil {
			return nil, fmt.Errorf("no key for amount %d", sig.Amount)
		}
		C_, err := parsePoint(sig.C_)
		if err != nil {
			return nil, err
		}
		C := crypto.UnblindSignature(C_, blinded[i].R, K)
		proofs[i] = cashu.Proof{
			Amount: sig.Amount,
			ID:     sig.ID,
			Secret: blinded[i].Secret,
			C:      hex.EncodeToString(C.SerializeCompressed()),
		}
	}
	return proofs, nil
}
