package cashu

// KeysetInfo describes one keyset as listed by GET /v1/keysets.
type KeysetInfo struct {
	ID          string       `json:"id"`
	Unit        CurrencyUnit `json:"unit"`
	Active      bool         `json:"active"`
	InputFeePpk uint         `json:"input_fee_ppk,omitempty"`
}

type GetKeysetsResponse struct {
	Keysets []KeysetInfo `json:"keysets"`
}

// Keyset carries the mint's public key for every amount it signs. Keys are
// hex encoded compressed secp256k1 points.
type Keyset struct {
	ID   string            `json:"id"`
	Unit CurrencyUnit      `json:"unit"`
	Keys map[Amount]string `json:"keys"`
}

type GetKeysResponse struct {
	Keysets []Keyset `json:"keysets"`
}

// InputFee returns the fee a mint charges for spending proofs, rounded up to
// a whole unit. ppk maps keyset ids to their fee in parts per thousand per
// input; unknown keysets are free.
func InputFee(proofs Proofs, ppk map[string]uint) Amount {
	var sum uint64
	for _, proof := range proofs {
		sum += uint64(ppk[proof.ID])
	}
	return Amount((sum + 999) / 1000)
}
