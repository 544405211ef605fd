package types

import "math/big"

// Account is the balance-and-nonce record the ledger keeps per address.
// AuthAddress is set when the account was rekeyed: from then on transactions
// must be signed by the auth key instead of the account key.
type Account struct {
	Nonce       uint64   `json:"nonce"`
	Balance     *big.Int `json:"balance"`
	AuthAddress []byte   `json:"authAddress,omitempty"`
}

// NewAccount returns an empty account with a zeroed balance.
func NewAccount() *Account {
	return &Account{Balance: big.NewInt(0)}
}

// Normalize fills nil big.Int fields so callers can do arithmetic without
// nil checks.
func (a *Account) Normalize() {
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := &Account{Nonce: a.Nonce, Balance: big.NewInt(0)}
	if a.Balance != nil {
		cp.Balance = new(big.Int).Set(a.Balance)
	}
	if len(a.AuthAddress) > 0 {
		cp.AuthAddress = append([]byte(nil), a.AuthAddress...)
	}
	return cp
}
