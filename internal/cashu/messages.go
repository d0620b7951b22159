package cashu

// Request and response bodies of the mint REST API.

type PostMintQuoteRequest struct {
	Amount Amount       `json:"amount"`
	Unit   CurrencyUnit `json:"unit"`
}

type PostMintQuoteResponse struct {
	Quote   string     `json:"quote"`
	Request string     `json:"request"`
	State   QuoteState `json:"state"`
	Expiry  int64      `json:"expiry"`
}

type PostMintRequest struct {
	Quote   string          `json:"quote"`
	Outputs BlindedMessages `json:"outputs"`
}

type PostMintResponse struct {
	Signatures BlindedSignatures `json:"signatures"`
}

type PostSwapRequest struct {
	Inputs  Proofs          `json:"inputs"`
	Outputs BlindedMessages `json:"outputs"`
}

type PostSwapResponse struct {
	Signatures BlindedSignatures `json:"signatures"`
}

// ErrorResponse is the body a mint returns with a non-2xx status.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   int    `json:"code"`
}
