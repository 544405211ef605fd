package core

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"tipvault/core/events"
	"tipvault/core/state"
	"tipvault/core/types"
	"tipvault/crypto"
	"tipvault/native/tipping"
)

// Verification failures a caller may want to distinguish from module errors.
var (
	ErrInvalidChainID    = errors.New("core: transaction chain id mismatch")
	ErrInvalidSignature  = errors.New("core: transaction signature invalid")
	ErrInvalidNonce      = errors.New("core: transaction nonce mismatch")
	ErrUnknownTxType     = errors.New("core: unknown transaction type")
	ErrInvalidTx         = errors.New("core: malformed transaction")
	ErrInsufficientFunds = errors.New("core: insufficient funds")
)

// Chain-level event types. Module events carry their own namespaces.
const (
	EventTypeTransfer = "ledger.transfer"
)

// StateProcessor applies signed transactions against ledger state. Every
// write goes through the manager's dirty overlay and reaches the database
// only when the whole transaction succeeded, so a guard failure halfway
// through a handler leaves no partial state behind.
type StateProcessor struct {
	manager *state.Manager
	engine  *tipping.Engine
	events  []types.Event
}

// NewStateProcessor wires a processor and its tipping engine to the provided
// state manager. The vault address must be configured via SetVault before
// tips or fee withdrawals can be applied.
func NewStateProcessor(manager *state.Manager) *StateProcessor {
	sp := &StateProcessor{manager: manager}
	engine := tipping.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(events.Func(func(evt events.Event) {
		carrier, ok := evt.(interface{ Event() *types.Event })
		if !ok {
			return
		}
		if e := carrier.Event(); e != nil {
			sp.events = append(sp.events, *e)
		}
	}))
	sp.engine = engine
	return sp
}

// SetVault configures the platform vault address on the tipping engine.
func (sp *StateProcessor) SetVault(vault [20]byte) { sp.engine.SetVault(vault) }

// SetNowFunc overrides the engine clock. Test helper.
func (sp *StateProcessor) SetNowFunc(now func() int64) { sp.engine.SetNowFunc(now) }

// Engine exposes the tipping engine for read-only queries.
func (sp *StateProcessor) Engine() *tipping.Engine { return sp.engine }

// ApplyTransaction verifies and executes a transaction. On success the
// buffered writes are committed and the events emitted during execution are
// returned in order; on failure the overlay is reset and nothing persists.
func (sp *StateProcessor) ApplyTransaction(tx *types.Transaction) ([]types.Event, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: nil transaction", ErrInvalidTx)
	}
	sp.events = sp.events[:0]
	sender, err := sp.verifyTransaction(tx)
	if err != nil {
		sp.manager.Reset()
		return nil, err
	}
	if err := sp.execute(tx, sender); err != nil {
		sp.manager.Reset()
		return nil, err
	}
	if err := sp.manager.Commit(); err != nil {
		sp.manager.Reset()
		return nil, err
	}
	applied := make([]types.Event, len(sp.events))
	copy(applied, sp.events)
	return applied, nil
}

// verifyTransaction checks chain id, signature authority and nonce, and
// returns the account the transaction acts on. For rekeyed accounts the
// signature must recover to the stored auth address, not the account itself.
func (sp *StateProcessor) verifyTransaction(tx *types.Transaction) ([]byte, error) {
	if tx.ChainID != types.ChainID() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidChainID, tx.ChainID, types.ChainID())
	}
	signer, err := tx.From()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sender := tx.Sender
	if len(sender) == 0 {
		sender = signer
	}
	if len(sender) != crypto.AddressLength {
		return nil, fmt.Errorf("%w: sender must be %d bytes", ErrInvalidTx, crypto.AddressLength)
	}
	account, err := sp.manager.GetAccount(sender)
	if err != nil {
		return nil, err
	}
	authorized := account.AuthAddress
	if len(authorized) == 0 {
		authorized = sender
	}
	if !bytes.Equal(signer, authorized) {
		return nil, fmt.Errorf("%w: signer is not authorized for this account", ErrInvalidSignature)
	}
	if tx.Nonce != account.Nonce {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonce, tx.Nonce, account.Nonce)
	}
	return sender, nil
}

func (sp *StateProcessor) execute(tx *types.Transaction, sender []byte) error {
	if err := sp.incrementNonce(sender); err != nil {
		return err
	}
	// Close and rekey directives ride on payments only. Transfers honor
	// them below, tips hand them to the engine so its integrity guards can
	// reject them; everything else must not carry them at all.
	if tx.Type != types.TxTypeTransfer && tx.Type != types.TxTypeTip {
		if len(tx.CloseTo) > 0 || len(tx.RekeyTo) > 0 {
			return fmt.Errorf("%w: transaction type %d must not carry close or rekey directives", ErrInvalidTx, tx.Type)
		}
		if tx.Value != nil && tx.Value.Sign() != 0 {
			return fmt.Errorf("%w: transaction type %d must not carry value", ErrInvalidTx, tx.Type)
		}
	}
	switch tx.Type {
	case types.TxTypeTransfer:
		return sp.applyTransfer(tx, sender)
	case types.TxTypeRegisterCreator:
		return sp.applyRegisterCreator(tx, sender)
	case types.TxTypeUpdateProfile:
		return sp.applyUpdateProfile(tx, sender)
	case types.TxTypeTip:
		return sp.applyTip(tx, sender)
	case types.TxTypeSetRevenueSplit:
		return sp.applySetRevenueSplit(tx, sender)
	case types.TxTypeRemoveRevenueSplit:
		return sp.applyRemoveRevenueSplit(sender)
	case types.TxTypeMintBadge:
		return sp.applyMintBadge(tx, sender)
	case types.TxTypePause:
		return sp.applyPause(sender)
	case types.TxTypeUnpause:
		return sp.applyUnpause(sender)
	case types.TxTypeTransferAdmin:
		return sp.applyTransferAdmin(tx, sender)
	case types.TxTypeAcceptAdmin:
		return sp.applyAcceptAdmin(sender)
	case types.TxTypeSetMinTipAmount:
		return sp.applySetMinTipAmount(tx, sender)
	case types.TxTypeSetPlatformFee:
		return sp.applySetPlatformFee(tx, sender)
	case types.TxTypeSetBadgeThresholds:
		return sp.applySetBadgeThresholds(tx, sender)
	case types.TxTypeWithdrawFees:
		return sp.applyWithdrawFees(tx, sender)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownTxType, tx.Type)
	}
}

func (sp *StateProcessor) incrementNonce(sender []byte) error {
	account, err := sp.manager.GetAccount(sender)
	if err != nil {
		return err
	}
	account.Nonce++
	return sp.manager.PutAccount(sender, account)
}

// credit adds amount to the account at addr, reading through the overlay so
// sequential credits to the same address compose instead of clobbering.
func (sp *StateProcessor) credit(addr []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	account, err := sp.manager.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return sp.manager.PutAccount(addr, account)
}

// applyTransfer moves value between accounts and honors the payment
// directives: RekeyTo rotates the sender's signing authority (rekeying back
// to the account itself clears it), CloseTo sweeps whatever balance remains
// after the transfer and resets the account's authority. The nonce survives
// a close so stale signed transactions cannot replay against the reopened
// account.
func (sp *StateProcessor) applyTransfer(tx *types.Transaction, sender []byte) error {
	if len(tx.To) != crypto.AddressLength {
		return fmt.Errorf("%w: transfer recipient must be %d bytes", ErrInvalidTx, crypto.AddressLength)
	}
	value := tx.Value
	if value == nil {
		value = big.NewInt(0)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("%w: transfer value must not be negative", ErrInvalidTx)
	}

	account, err := sp.manager.GetAccount(sender)
	if err != nil {
		return err
	}
	if account.Balance.Cmp(value) < 0 {
		return fmt.Errorf("%w: balance %s below transfer value %s", ErrInsufficientFunds, account.Balance, value)
	}
	account.Balance = new(big.Int).Sub(account.Balance, value)

	if len(tx.RekeyTo) > 0 {
		if len(tx.RekeyTo) != crypto.AddressLength {
			return fmt.Errorf("%w: rekey target must be %d bytes", ErrInvalidTx, crypto.AddressLength)
		}
		if bytes.Equal(tx.RekeyTo, sender) {
			account.AuthAddress = nil
		} else {
			account.AuthAddress = append([]byte(nil), tx.RekeyTo...)
		}
	}
	if err := sp.manager.PutAccount(sender, account); err != nil {
		return err
	}
	if err := sp.credit(tx.To, value); err != nil {
		return err
	}

	attrs := map[string]string{
		"from":   crypto.NewAddress(sender).String(),
		"to":     crypto.NewAddress(tx.To).String(),
		"amount": value.String(),
	}

	if len(tx.CloseTo) > 0 {
		if len(tx.CloseTo) != crypto.AddressLength {
			return fmt.Errorf("%w: close target must be %d bytes", ErrInvalidTx, crypto.AddressLength)
		}
		if bytes.Equal(tx.CloseTo, sender) {
			return fmt.Errorf("%w: cannot close an account to itself", ErrInvalidTx)
		}
		// Reload: the recipient credit above may have touched this
		// account when the transfer was sent to self.
		closing, err := sp.manager.GetAccount(sender)
		if err != nil {
			return err
		}
		remainder := new(big.Int).Set(closing.Balance)
		closing.Balance = big.NewInt(0)
		closing.AuthAddress = nil
		if err := sp.manager.PutAccount(sender, closing); err != nil {
			return err
		}
		if err := sp.credit(tx.CloseTo, remainder); err != nil {
			return err
		}
		attrs["closedTo"] = crypto.NewAddress(tx.CloseTo).String()
		attrs["closedAmount"] = remainder.String()
	}
	if len(tx.RekeyTo) > 0 {
		attrs["rekeyedTo"] = crypto.NewAddress(tx.RekeyTo).String()
	}

	sp.events = append(sp.events, types.Event{Type: EventTypeTransfer, Attributes: attrs})
	return nil
}

func (sp *StateProcessor) applyRegisterCreator(tx *types.Transaction, sender []byte) error {
	var payload types.ProfilePayload
	if err := types.DecodePayload(tx.Data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	_, err = sp.engine.Register(caller, payload.Name, payload.Bio, payload.Category, payload.ImageURL)
	return err
}

func (sp *StateProcessor) applyUpdateProfile(tx *types.Transaction, sender []byte) error {
	var payload types.ProfilePayload
	if err := types.DecodePayload(tx.Data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	_, err = sp.engine.UpdateProfile(caller, payload.Name, payload.Bio, payload.Category, payload.ImageURL)
	return err
}

// applyTip hands the payment to the engine as-is: To becomes the receiver
// and the close/rekey directives pass through untouched, so the engine's
// integrity checks see exactly what the signer submitted.
func (sp *StateProcessor) applyTip(tx *types.Transaction, sender []byte) error {
	var payload types.TipPayload
	if err := types.DecodePayload(tx.Data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	creator, err := decodeAddr(payload.Creator)
	if err != nil {
		return fmt.Errorf("%w: creator: %v", ErrInvalidTx, err)
	}
	from, err := toAddr(sender)
	if err != nil {
		return err
	}
	var receiver [20]byte
	if len(tx.To) == crypto.AddressLength {
		copy(receiver[:], tx.To)
	}
	payment := &tipping.Payment{
		From:     from,
		Receiver: receiver,
		Amount:   tx.Value,
		CloseTo:  tx.CloseTo,
		RekeyTo:  tx.RekeyTo,
	}
	_, err = sp.engine.SendTip(payment, creator, payload.Message)
	return err
}

func (sp *StateProcessor) applySetRevenueSplit(tx *types.Transaction, sender []byte) error {
	var payload types.SplitPayload
	if err := types.DecodePayload(tx.Data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	collaborator, err := decodeAddr(payload.Collaborator)
	if err != nil {
		return fmt.Errorf("%w: collaborator: %v", ErrInvalidTx, err)
	}
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	_, err = sp.engine.SetRevenueSplit(caller, collaborator, payload.Name, payload.Percent)
	return err
}

func (sp *StateProcessor) applyRemoveRevenueSplit(sender []byte) error {
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	_, err = sp.engine.RemoveRevenueSplit(caller)
	return err
}

func (sp *StateProcessor) applyMintBadge(tx *types.Transaction, sender []byte) error {
	var payload types.BadgePayload
	if err := types.DecodePayload(tx.Data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	supporter, err := decodeAddr(payload.Supporter)
	if err != nil {
		return fmt.Errorf("%w: supporter: %v", ErrInvalidTx, err)
	}
	creator, err := decodeAddr(payload.Creator)
	if err != nil {
		return fmt.Errorf("%w: creator: %v", ErrInvalidTx, err)
	}
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	_, err = sp.engine.MintBadge(caller, supporter, payload.Tier, creator)
	return err
}

func (sp *StateProcessor) applyPause(sender []byte) error {
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	return sp.engine.Pause(caller)
}

func (sp *StateProcessor) applyUnpause(sender []byte) error {
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	return sp.engine.Unpause(caller)
}

func (sp *StateProcessor) applyTransferAdmin(tx *types.Transaction, sender []byte) error {
	var payload types.AdminPayload
	if err := types.DecodePayload(tx.Data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	newAdmin, err := decodeAddr(payload.NewAdmin)
	if err != nil {
		return fmt.Errorf("%w: new admin: %v", ErrInvalidTx, err)
	}
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	return sp.engine.TransferAdmin(caller, newAdmin)
}

func (sp *StateProcessor) applyAcceptAdmin(sender []byte) error {
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	return sp.engine.AcceptAdmin(caller)
}

func (sp *StateProcessor) applySetMinTipAmount(tx *types.Transaction, sender []byte) error {
	var payload types.AmountPayload
	if err := types.DecodePayload(tx.Data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	amount, err := types.ParseAmount(payload.Amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	return sp.engine.SetMinTipAmount(caller, amount)
}

func (sp *StateProcessor) applySetPlatformFee(tx *types.Transaction, sender []byte) error {
	var payload types.FeePayload
	if err := types.DecodePayload(tx.Data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	return sp.engine.SetPlatformFee(caller, payload.Bps)
}

func (sp *StateProcessor) applySetBadgeThresholds(tx *types.Transaction, sender []byte) error {
	var payload types.ThresholdsPayload
	if err := types.DecodePayload(tx.Data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	thresholds := make([]*big.Int, 0, 4)
	for _, raw := range []string{payload.Bronze, payload.Silver, payload.Gold, payload.Diamond} {
		amount, err := types.ParseAmount(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTx, err)
		}
		thresholds = append(thresholds, amount)
	}
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	return sp.engine.SetBadgeThresholds(caller, thresholds)
}

func (sp *StateProcessor) applyWithdrawFees(tx *types.Transaction, sender []byte) error {
	var payload types.AmountPayload
	if err := types.DecodePayload(tx.Data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	amount, err := types.ParseAmount(payload.Amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	caller, err := toAddr(sender)
	if err != nil {
		return err
	}
	_, err = sp.engine.WithdrawPlatformFees(caller, amount)
	return err
}

func toAddr(b []byte) ([20]byte, error) {
	var addr [20]byte
	if len(b) != crypto.AddressLength {
		return addr, fmt.Errorf("%w: address must be %d bytes", ErrInvalidTx, crypto.AddressLength)
	}
	copy(addr[:], b)
	return addr, nil
}

func decodeAddr(encoded string) ([20]byte, error) {
	var addr [20]byte
	decoded, err := crypto.DecodeAddress(encoded)
	if err != nil {
		return addr, err
	}
	copy(addr[:], decoded.Bytes())
	return addr, nil
}
