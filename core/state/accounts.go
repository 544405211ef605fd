package state

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"tipvault/core/types"
)

var accountPrefix = []byte("account:")

// storedAccount is the persisted shape of an account. Balances ride as
// uint256 words so a corrupted negative value can never round-trip.
type storedAccount struct {
	Nonce       uint64
	Balance     *uint256.Int
	AuthAddress []byte
}

func accountStorageKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return buf
}

// GetAccount loads the account stored under addr. Unknown addresses return a
// fresh zero-balance account rather than an error so transfer paths can
// credit first-touch receivers.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("state: account address must not be empty")
	}
	stored := new(storedAccount)
	ok, err := m.KVGet(accountStorageKey(addr), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	account := &types.Account{
		Nonce:   stored.Nonce,
		Balance: big.NewInt(0),
	}
	if stored.Balance != nil {
		account.Balance = stored.Balance.ToBig()
	}
	if len(stored.AuthAddress) > 0 {
		account.AuthAddress = append([]byte(nil), stored.AuthAddress...)
	}
	return account, nil
}

// PutAccount writes the account under addr, rejecting balances that do not
// fit the 256-bit word.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) == 0 {
		return fmt.Errorf("state: account address must not be empty")
	}
	if account == nil {
		return fmt.Errorf("state: account must not be nil")
	}
	account.Normalize()
	if account.Balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance for %x", addr)
	}
	balance, overflow := uint256.FromBig(account.Balance)
	if overflow {
		return fmt.Errorf("state: balance overflow for %x", addr)
	}
	stored := &storedAccount{
		Nonce:   account.Nonce,
		Balance: balance,
	}
	if len(account.AuthAddress) > 0 {
		stored.AuthAddress = append([]byte(nil), account.AuthAddress...)
	}
	return m.KVPut(accountStorageKey(addr), stored)
}
