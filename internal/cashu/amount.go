package cashu

import (
	"fmt"
	"strconv"
	"strings"
)

// Amount is a quantity of the smallest unit of a CurrencyUnit.
type Amount uint64

func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// CurrencyUnit identifies the denomination space of a mint keyset.
type CurrencyUnit string

const (
	UnitSat  CurrencyUnit = "sat"
	UnitMsat CurrencyUnit = "msat"
	UnitUSD  CurrencyUnit = "usd"
	UnitEUR  CurrencyUnit = "eur"
)

// ParseUnit normalises a unit name and rejects units the harness does not know.
func ParseUnit(s string) (CurrencyUnit, error) {
	unit := CurrencyUnit(strings.ToLower(strings.TrimSpace(s)))
	switch unit {
	case UnitSat, UnitMsat, UnitUSD, UnitEUR:
		return unit, nil
	default:
		return "", fmt.Errorf("unknown currency unit %q", s)
	}
}

func (u CurrencyUnit) String() string {
	return string(u)
}

// SplitTarget controls how an amount is broken into denominations when
// outputs are created. The zero value is the default binary split.
type SplitTarget struct {
	// Value, when non-zero, asks for as many notes of Value as fit before the
	// remainder is split by the default policy.
	Value Amount
}

// DefaultSplit is the policy used for minting, sending and receiving unless
// a caller asks otherwise.
var DefaultSplit = SplitTarget{}

// Split returns the denominations that make up amount under the target
// policy. Every denomination is a power of two and the parts sum to amount.
func (t SplitTarget) Split(amount Amount) []Amount {
	if t.Value == 0 || t.Value > amount {
		return splitBinary(amount)
	}

	parts := make([]Amount, 0)
	remaining := amount
	for remaining >= t.Value {
		parts = append(parts, splitBinary(t.Value)...)
		remaining -= t.Value
	}
	return append(parts, splitBinary(remaining)...)
}

func splitBinary(amount Amount) []Amount {
	parts := make([]Amount, 0, 8)
	for bit := 0; amount > 0; bit++ {
		if amount&1 == 1 {
			parts = append(parts, Amount(1)<<bit)
		}
		amount >>= 1
	}
	return parts
}
