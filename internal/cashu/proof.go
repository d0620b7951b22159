package cashu

// Proof is a spendable note: a secret together with the mint's signature on it.
type Proof struct {
	Amount Amount `json:"amount"`
	ID     string `json:"id"`
	Secret string `json:"secret"`
	C      string `json:"C"`
}

type Proofs []Proof

// Total returns the sum of the proof amounts.
func (p Proofs) Total() Amount {
	var total Amount
	for _, proof := range p {
		total += proof.Amount
	}
	return total
}

// Secrets returns the secret of every proof, in order.
func (p Proofs) Secrets() []string {
	secrets := make([]string, len(p))
	for i, proof := range p {
		secrets[i] = proof.Secret
	}
	return secrets
}

// BlindedMessage is an output the wallet asks the mint to sign. B_ is the hex
// encoded compressed point Y + rG for the secret's curve point Y.
type BlindedMessage struct {
	Amount Amount `json:"amount"`
	ID     string `json:"id"`
	B_     string `json:"B_"`
}

type BlindedMessages []BlindedMessage

// BlindedSignature is the mint's signature over a BlindedMessage.
type BlindedSignature struct {
	Amount Amount `json:"amount"`
	C_     string `json:"C_"`
	ID     string `json:"id"`
}

type BlindedSignatures []BlindedSignature
