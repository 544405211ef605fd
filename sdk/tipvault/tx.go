package tipvault

import (
	"fmt"
	"math/big"
	"strings"

	"tipvault/core/types"
	"tipvault/crypto"
)

// Transaction builders. Each validates its inputs, assembles the payload,
// and signs with the supplied key so the result can go straight to Submit.

func signTx(key *crypto.PrivateKey, tx *types.Transaction) (*types.Transaction, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key required")
	}
	tx.ChainID = types.ChainID()
	if err := tx.Sign(key.PrivateKey); err != nil {
		return nil, err
	}
	return tx, nil
}

func decodeBech(label, value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s address required", label)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid %s address: %w", label, err)
	}
	return addr.Bytes(), nil
}

func positiveAmount(label, value string) (*big.Int, error) {
	amount, err := types.ParseAmount(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", label, err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%s must be positive", label)
	}
	return amount, nil
}

// NewTransferTx moves value between ledger accounts.
func NewTransferTx(key *crypto.PrivateKey, nonce uint64, to, amount string) (*types.Transaction, error) {
	toBytes, err := decodeBech("recipient", to)
	if err != nil {
		return nil, err
	}
	value, err := positiveAmount("transfer amount", amount)
	if err != nil {
		return nil, err
	}
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeTransfer,
		Nonce: nonce,
		To:    toBytes,
		Value: value,
	})
}

// NewRegisterTx creates the caller's creator profile.
func NewRegisterTx(key *crypto.PrivateKey, nonce uint64, name, bio, category, imageURL string) (*types.Transaction, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("profile name required")
	}
	payload, err := types.EncodePayload(types.ProfilePayload{
		Name:     name,
		Bio:      bio,
		Category: category,
		ImageURL: imageURL,
	})
	if err != nil {
		return nil, err
	}
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeRegisterCreator,
		Nonce: nonce,
		Data:  payload,
	})
}

// NewUpdateProfileTx rewrites the caller's profile text.
func NewUpdateProfileTx(key *crypto.PrivateKey, nonce uint64, name, bio, category, imageURL string) (*types.Transaction, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("profile name required")
	}
	payload, err := types.EncodePayload(types.ProfilePayload{
		Name:     name,
		Bio:      bio,
		Category: category,
		ImageURL: imageURL,
	})
	if err != nil {
		return nil, err
	}
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeUpdateProfile,
		Nonce: nonce,
		Data:  payload,
	})
}

// NewTipTx sends value to the platform vault for a creator. The vault
// address comes from tipping_getParams.
func NewTipTx(key *crypto.PrivateKey, nonce uint64, vault, creator, amount, message string) (*types.Transaction, error) {
	vaultBytes, err := decodeBech("vault", vault)
	if err != nil {
		return nil, err
	}
	creatorAddr, err := decodeBech("creator", creator)
	if err != nil {
		return nil, err
	}
	value, err := positiveAmount("tip amount", amount)
	if err != nil {
		return nil, err
	}
	payload, err := types.EncodePayload(types.TipPayload{
		Creator: crypto.NewAddress(creatorAddr).String(),
		Message: message,
	})
	if err != nil {
		return nil, err
	}
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeTip,
		Nonce: nonce,
		To:    vaultBytes,
		Value: value,
		Data:  payload,
	})
}

// NewSetSplitTx configures a collaborator revenue split on the caller's
// profile.
func NewSetSplitTx(key *crypto.PrivateKey, nonce uint64, collaborator, name string, percent uint8) (*types.Transaction, error) {
	collabBytes, err := decodeBech("collaborator", collaborator)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("collaborator name required")
	}
	if percent == 0 {
		return nil, fmt.Errorf("split percent must be positive")
	}
	payload, err := types.EncodePayload(types.SplitPayload{
		Collaborator: crypto.NewAddress(collabBytes).String(),
		Name:         name,
		Percent:      percent,
	})
	if err != nil {
		return nil, err
	}
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeSetRevenueSplit,
		Nonce: nonce,
		Data:  payload,
	})
}

// NewRemoveSplitTx clears the caller's revenue split.
func NewRemoveSplitTx(key *crypto.PrivateKey, nonce uint64) (*types.Transaction, error) {
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeRemoveRevenueSplit,
		Nonce: nonce,
	})
}

// NewMintBadgeTx mints an appreciation badge for a supporter. Admin only.
func NewMintBadgeTx(key *crypto.PrivateKey, nonce uint64, supporter string, tier uint8, creator string) (*types.Transaction, error) {
	supporterBytes, err := decodeBech("supporter", supporter)
	if err != nil {
		return nil, err
	}
	creatorBytes, err := decodeBech("creator", creator)
	if err != nil {
		return nil, err
	}
	payload, err := types.EncodePayload(types.BadgePayload{
		Supporter: crypto.NewAddress(supporterBytes).String(),
		Tier:      tier,
		Creator:   crypto.NewAddress(creatorBytes).String(),
	})
	if err != nil {
		return nil, err
	}
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeMintBadge,
		Nonce: nonce,
		Data:  payload,
	})
}

// NewPauseTx engages the platform circuit breaker. Admin only.
func NewPauseTx(key *crypto.PrivateKey, nonce uint64) (*types.Transaction, error) {
	return signTx(key, &types.Transaction{Type: types.TxTypePause, Nonce: nonce})
}

// NewUnpauseTx releases the circuit breaker. Admin only.
func NewUnpauseTx(key *crypto.PrivateKey, nonce uint64) (*types.Transaction, error) {
	return signTx(key, &types.Transaction{Type: types.TxTypeUnpause, Nonce: nonce})
}

// NewTransferAdminTx proposes an admin handoff. Admin only.
func NewTransferAdminTx(key *crypto.PrivateKey, nonce uint64, newAdmin string) (*types.Transaction, error) {
	adminBytes, err := decodeBech("new admin", newAdmin)
	if err != nil {
		return nil, err
	}
	payload, err := types.EncodePayload(types.AdminPayload{
		NewAdmin: crypto.NewAddress(adminBytes).String(),
	})
	if err != nil {
		return nil, err
	}
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeTransferAdmin,
		Nonce: nonce,
		Data:  payload,
	})
}

// NewAcceptAdminTx completes a pending admin handoff.
func NewAcceptAdminTx(key *crypto.PrivateKey, nonce uint64) (*types.Transaction, error) {
	return signTx(key, &types.Transaction{Type: types.TxTypeAcceptAdmin, Nonce: nonce})
}

// NewSetMinTipTx replaces the minimum accepted tip. Admin only.
func NewSetMinTipTx(key *crypto.PrivateKey, nonce uint64, amount string) (*types.Transaction, error) {
	if _, err := positiveAmount("minimum tip", amount); err != nil {
		return nil, err
	}
	payload, err := types.EncodePayload(types.AmountPayload{Amount: strings.TrimSpace(amount)})
	if err != nil {
		return nil, err
	}
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeSetMinTipAmount,
		Nonce: nonce,
		Data:  payload,
	})
}

// NewSetFeeTx replaces the platform fee rate. Admin only.
func NewSetFeeTx(key *crypto.PrivateKey, nonce uint64, bps uint32) (*types.Transaction, error) {
	payload, err := types.EncodePayload(types.FeePayload{Bps: bps})
	if err != nil {
		return nil, err
	}
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeSetPlatformFee,
		Nonce: nonce,
		Data:  payload,
	})
}

// NewSetThresholdsTx replaces the four badge thresholds. Admin only.
func NewSetThresholdsTx(key *crypto.PrivateKey, nonce uint64, bronze, silver, gold, diamond string) (*types.Transaction, error) {
	for label, value := range map[string]string{
		"bronze threshold":  bronze,
		"silver threshold":  silver,
		"gold threshold":    gold,
		"diamond threshold": diamond,
	} {
		if _, err := positiveAmount(label, value); err != nil {
			return nil, err
		}
	}
	payload, err := types.EncodePayload(types.ThresholdsPayload{
		Bronze:  strings.TrimSpace(bronze),
		Silver:  strings.TrimSpace(silver),
		Gold:    strings.TrimSpace(gold),
		Diamond: strings.TrimSpace(diamond),
	})
	if err != nil {
		return nil, err
	}
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeSetBadgeThresholds,
		Nonce: nonce,
		Data:  payload,
	})
}

// NewWithdrawFeesTx moves accumulated fees from the vault to the admin.
// Admin only.
func NewWithdrawFeesTx(key *crypto.PrivateKey, nonce uint64, amount string) (*types.Transaction, error) {
	if _, err := positiveAmount("withdrawal amount", amount); err != nil {
		return nil, err
	}
	payload, err := types.EncodePayload(types.AmountPayload{Amount: strings.TrimSpace(amount)})
	if err != nil {
		return nil, err
	}
	return signTx(key, &types.Transaction{
		Type:  types.TxTypeWithdrawFees,
		Nonce: nonce,
		Data:  payload,
	})
}
