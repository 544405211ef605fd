package types

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeTransfer           TxType = 0x01 // plain value transfer, honors CloseTo/RekeyTo
	TxTypeRegisterCreator    TxType = 0x02
	TxTypeUpdateProfile      TxType = 0x03
	TxTypeTip                TxType = 0x04 // value rides on the tx, To is the vault, payload names the creator
	TxTypeSetRevenueSplit    TxType = 0x05
	TxTypeRemoveRevenueSplit TxType = 0x06
	TxTypeMintBadge          TxType = 0x07
	TxTypePause              TxType = 0x08
	TxTypeUnpause            TxType = 0x09
	TxTypeTransferAdmin      TxType = 0x0a
	TxTypeAcceptAdmin        TxType = 0x0b
	TxTypeSetMinTipAmount    TxType = 0x0c
	TxTypeSetPlatformFee     TxType = 0x0d
	TxTypeSetBadgeThresholds TxType = 0x0e
	TxTypeWithdrawFees       TxType = 0x0f
)

// ChainID identifies the TipVault ledger so signed transactions cannot be
// replayed onto another deployment.
func ChainID() uint64 { return 7476 }

// Transaction is the signed unit of work submitted to the node. CloseTo and
// RekeyTo are payment-level directives: a transfer carrying CloseTo sweeps
// the sender's remaining balance to that address and zeroes the account, and
// RekeyTo rotates the account's signing authority. Module calls decide for
// themselves whether to accept payments carrying either directive.
//
// Sender is optional. When empty the account acted on is the recovered
// signer; a rekeyed account must set Sender explicitly because its
// transactions are signed by the auth key, whose recovered address no longer
// matches the account.
type Transaction struct {
	Type    TxType   `json:"type"`
	ChainID uint64   `json:"chainId"`
	Nonce   uint64   `json:"nonce"`
	Sender  []byte   `json:"sender,omitempty"`
	To      []byte   `json:"to,omitempty"`
	Value   *big.Int `json:"value"`
	Data    []byte   `json:"data,omitempty"`
	CloseTo []byte   `json:"closeTo,omitempty"`
	RekeyTo []byte   `json:"rekeyTo,omitempty"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from []byte
}

var errUnsigned = errors.New("types: transaction is not signed")

// Hash covers every field a signer commits to.
func (tx *Transaction) Hash() ([]byte, error) {
	txData := struct {
		Type    TxType
		ChainID uint64
		Nonce   uint64
		Sender  []byte
		To      []byte
		Value   *big.Int
		Data    []byte
		CloseTo []byte
		RekeyTo []byte
	}{tx.Type, tx.ChainID, tx.Nonce, tx.Sender, tx.To, tx.Value, tx.Data, tx.CloseTo, tx.RekeyTo}

	b, err := json.Marshal(txData)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signer address. The result is cached on first use.
func (tx *Transaction) From() ([]byte, error) {
	if tx.from != nil {
		return tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return nil, errUnsigned
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 65)
	copy(sig[32-len(tx.R.Bytes()):32], tx.R.Bytes())
	copy(sig[64-len(tx.S.Bytes()):64], tx.S.Bytes())
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	tx.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	return tx.from, nil
}
