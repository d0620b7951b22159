package cashu

import "time"

// QuoteState is the lifecycle state of a mint quote as reported by the mint.
type QuoteState string

const (
	QuoteUnpaid QuoteState = "UNPAID"
	QuotePaid   QuoteState = "PAID"
	QuoteIssued QuoteState = "ISSUED"
)

// Paid reports whether the quote has been paid, including quotes whose
// tokens were already issued.
func (s QuoteState) Paid() bool {
	return s == QuotePaid || s == QuoteIssued
}

func (s QuoteState) String() string {
	return string(s)
}

// MintQuote is a pending funding request issued by a mint.
type MintQuote struct {
	ID      string
	Request string
	Amount  Amount
	Unit    CurrencyUnit
	State   QuoteState
	Expiry  time.Time
}
