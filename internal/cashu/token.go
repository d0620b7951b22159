package cashu

import (
	"errors"
	"fmt"
	"strings"

	nuts "github.com/elnosh/gonuts/cashu"
)

const tokenPrefixV3 = "cashuA"

// ErrInvalidToken is returned when a serialized token cannot be decoded.
var ErrInvalidToken = errors.New("invalid token")

// Token is a transferable bearer value. It serializes to the V3 string form
// "cashuA" followed by the base64url encoded JSON body.
type Token struct {
	Entries []TokenEntry
	Unit    CurrencyUnit
	Memo    string
}

// TokenEntry groups proofs issued by a single mint.
type TokenEntry struct {
	Mint   string
	Proofs Proofs
}

// NewToken wraps proofs from one mint into a token.
func NewToken(mint string, unit CurrencyUnit, proofs Proofs) Token {
	return Token{
		Entries: []TokenEntry{{Mint: mint, Proofs: proofs}},
		Unit:    unit,
	}
}

// Proofs returns every proof carried by the token.
func (t Token) Proofs() Proofs {
	proofs := make(Proofs, 0)
	for _, entry := range t.Entries {
		proofs = append(proofs, entry.Proofs...)
	}
	return proofs
}

// Amount returns the total value of the token.
func (t Token) Amount() Amount {
	return t.Proofs().Total()
}

// Mints returns the distinct mint URLs referenced by the token.
func (t Token) Mints() []string {
	seen := make(map[string]struct{}, len(t.Entries))
	mints := make([]string, 0, len(t.Entries))
	for _, entry := range t.Entries {
		if _, ok := seen[entry.Mint]; ok {
			continue
		}
		seen[entry.Mint] = struct{}{}
		mints = append(mints, entry.Mint)
	}
	return mints
}

// String serializes the token in the V3 format.
func (t Token) String() string {
	encoded, err := t.v3().Serialize()
	if err != nil {
		// Token only holds strings and integers.
		panic(fmt.Sprintf("serialize token: %v", err))
	}
	return encoded
}

func (t Token) v3() nuts.TokenV3 {
	v3 := nuts.TokenV3{
		Token: make([]nuts.TokenV3Proof, len(t.Entries)),
		Unit:  t.Unit.String(),
		Memo:  t.Memo,
	}
	for i, entry := range t.Entries {
		proofs := make(nuts.Proofs, len(entry.Proofs))
		for j, p := range entry.Proofs {
			proofs[j] = nuts.Proof{Amount: uint64(p.Amount), Id: p.ID, Secret: p.Secret, C: p.C}
		}
		v3.Token[i] = nuts.TokenV3Proof{Mint: entry.Mint, Proofs: proofs}
	}
	return v3
}

// DecodeToken parses a serialized V3 token. Padded and unpadded base64url are
// both accepted.
func DecodeToken(s string) (Token, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, tokenPrefixV3) {
		return Token{}, fmt.Errorf("%w: unsupported prefix", ErrInvalidToken)
	}

	// re-pad so the body decodes whichever form the sender used
	body := strings.TrimRight(strings.TrimPrefix(s, tokenPrefixV3), "=")
	if rem := len(body) % 4; rem != 0 {
		body += strings.Repeat("=", 4-rem)
	}
	v3, err := nuts.DecodeTokenV3(tokenPrefixV3 + body)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	token := Token{
		Entries: make([]TokenEntry, len(v3.Token)),
		Unit:    CurrencyUnit(v3.Unit),
		Memo:    v3.Memo,
	}
	for i, entry := range v3.Token {
		proofs := make(Proofs, len(entry.Proofs))
		for j, p := range entry.Proofs {
			proofs[j] = Proof{Amount: Amount(p.Amount), ID: p.Id, Secret: p.Secret, C: p.C}
		}
		token.Entries[i] = TokenEntry{Mint: entry.Mint, Proofs: proofs}
	}

	if len(token.Entries) == 0 {
		return Token{}, fmt.Errorf("%w: no entries", ErrInvalidToken)
	}
	for _, entry := range token.Entries {
		if entry.Mint == "" {
			return Token{}, fmt.Errorf("%w: entry without mint", ErrInvalidToken)
		}
		if len(entry.Proofs) == 0 {
			return Token{}, fmt.Errorf("%w: entry without proofs", ErrInvalidToken)
		}
		for _, proof := range entry.Proofs {
			if proof.Amount == 0 || proof.Secret == "" || proof.C == "" {
				return Token{}, fmt.Errorf("%w: malformed proof", ErrInvalidToken)
			}
		}
	}

	return token, nil
}
