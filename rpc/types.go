package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"tipvault/core"
	"tipvault/core/types"
	"tipvault/crypto"
	"tipvault/native/tipping"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeDuplicateTx    = -32010
	codeRateLimited    = -32020
)

// Module error codes. Engine and processor failures surface to clients with
// a stable code so integrations can branch without parsing messages.
const (
	codeTxRejected     = -32030
	codePaused         = -32031
	codeNotAuthorized  = -32032
	codeNotRegistered  = -32033
	codeAlreadyExists  = -32034
	codeAmountTooSmall = -32035
	codeSelfReference  = -32036
	codeIntegrity      = -32037
	codeInsufficient   = -32038
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// submitError translates a rejected submission into an HTTP status and RPC
// code pair. Unknown errors fall through to the generic server error.
func submitError(err error) (int, int) {
	switch {
	case errors.Is(err, tipping.ErrPaused):
		return http.StatusConflict, codePaused
	case errors.Is(err, tipping.ErrUnauthorized):
		return http.StatusForbidden, codeNotAuthorized
	case errors.Is(err, tipping.ErrNotRegistered):
		return http.StatusNotFound, codeNotRegistered
	case errors.Is(err, tipping.ErrAlreadyRegistered):
		return http.StatusConflict, codeAlreadyExists
	case errors.Is(err, tipping.ErrInsufficientAmount):
		return http.StatusBadRequest, codeAmountTooSmall
	case errors.Is(err, tipping.ErrSelfReference):
		return http.StatusBadRequest, codeSelfReference
	case errors.Is(err, tipping.ErrIntegrity):
		return http.StatusBadRequest, codeIntegrity
	case errors.Is(err, tipping.ErrValidation):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, core.ErrInsufficientFunds):
		return http.StatusBadRequest, codeInsufficient
	case errors.Is(err, core.ErrInvalidChainID),
		errors.Is(err, core.ErrInvalidSignature),
		errors.Is(err, core.ErrInvalidNonce),
		errors.Is(err, core.ErrUnknownTxType),
		errors.Is(err, core.ErrInvalidTx):
		return http.StatusBadRequest, codeTxRejected
	case errors.Is(err, core.ErrNodeClosed):
		return http.StatusServiceUnavailable, codeServerError
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

// SubmitResult reports an accepted transaction together with the events it
// emitted.
type SubmitResult struct {
	Hash   string        `json:"hash"`
	Type   string        `json:"type"`
	Events []types.Event `json:"events"`
}

// BalanceResult is the account view served by tv_getBalance.
type BalanceResult struct {
	Address     string   `json:"address"`
	Balance     *big.Int `json:"balance"`
	Nonce       uint64   `json:"nonce"`
	AuthAddress string   `json:"authAddress,omitempty"`
}

// ProfileResult is the creator view served by tipping_getProfile.
type ProfileResult struct {
	Address      string       `json:"address"`
	Name         string       `json:"name"`
	Bio          string       `json:"bio"`
	Category     string       `json:"category"`
	ImageURL     string       `json:"imageUrl"`
	TipsReceived string       `json:"tipsReceived"`
	TipCount     uint64       `json:"tipCount"`
	RegisteredAt uint64       `json:"registeredAt"`
	Split        *SplitResult `json:"split,omitempty"`
}

// SplitResult mirrors a configured revenue split.
type SplitResult struct {
	Collaborator string `json:"collaborator"`
	Name         string `json:"name"`
	Percent      uint8  `json:"percent"`
}

// BadgeResult is one minted badge.
type BadgeResult struct {
	TokenID   string `json:"tokenId"`
	Creator   string `json:"creator"`
	Supporter string `json:"supporter"`
	Tier      uint8  `json:"tier"`
	TierName  string `json:"tierName"`
	MintedAt  uint64 `json:"mintedAt"`
}

// StatsResult is the aggregate platform snapshot.
type StatsResult struct {
	TotalCreators        uint64 `json:"totalCreators"`
	TotalValueProcessed  string `json:"totalValueProcessed"`
	TotalTipCount        uint64 `json:"totalTipCount"`
	TotalBadgesMinted    uint64 `json:"totalBadgesMinted"`
	TotalFeesAccumulated string `json:"totalFeesAccumulated"`
	MinTipAmount         string `json:"minTipAmount"`
	PlatformFeeBps       uint32 `json:"platformFeeBps"`
	Paused               bool   `json:"paused"`
}

// ParamsResult reports the admin-tunable settings plus the vault address.
type ParamsResult struct {
	MinTipAmount    string   `json:"minTipAmount"`
	PlatformFeeBps  uint32   `json:"platformFeeBps"`
	BadgeThresholds []string `json:"badgeThresholds"`
	Vault           string   `json:"vault"`
	Paused          bool     `json:"paused"`
}

// AdminResult is the privileged admin view.
type AdminResult struct {
	Admin        string `json:"admin"`
	PendingAdmin string `json:"pendingAdmin,omitempty"`
}

// FeesResult is the privileged fee ledger view.
type FeesResult struct {
	Accumulated    string `json:"accumulated"`
	RetainedSplits string `json:"retainedSplits"`
	VaultBalance   string `json:"vaultBalance"`
	Reserve        string `json:"reserve"`
}

// TipRecordResult is the audit pair for one creator.
type TipRecordResult struct {
	Address      string `json:"address"`
	TipsReceived string `json:"tipsReceived"`
	TipCount     uint64 `json:"tipCount"`
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(addr[:]).String()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatProfile(p *tipping.Profile) *ProfileResult {
	if p == nil {
		return nil
	}
	result := &ProfileResult{
		Address:      formatAddress(p.Address),
		Name:         p.Name,
		Bio:          p.Bio,
		Category:     p.Category,
		ImageURL:     p.ImageURL,
		TipsReceived: bigString(p.TipsReceived),
		TipCount:     p.TipCount,
		RegisteredAt: p.RegisteredAt,
	}
	if p.Split != nil {
		result.Split = &SplitResult{
			Collaborator: formatAddress(p.Split.Collaborator),
			Name:         p.Split.Name,
			Percent:      p.Split.Percent,
		}
	}
	return result
}

func formatBadge(b *tipping.Badge) BadgeResult {
	return BadgeResult{
		TokenID:   "0x" + hex.EncodeToString(b.TokenID[:]),
		Creator:   formatAddress(b.Creator),
		Supporter: formatAddress(b.Supporter),
		Tier:      b.Tier,
		TierName:  b.TierName(),
		MintedAt:  b.MintedAt,
	}
}

func formatStats(stats *tipping.PlatformStats) StatsResult {
	return StatsResult{
		TotalCreators:        stats.TotalCreators,
		TotalValueProcessed:  bigString(stats.TotalValueProcessed),
		TotalTipCount:        stats.TotalTipCount,
		TotalBadgesMinted:    stats.TotalBadgesMinted,
		TotalFeesAccumulated: bigString(stats.TotalFeesAccumulated),
		MinTipAmount:         bigString(stats.MinTipAmount),
		PlatformFeeBps:       stats.PlatformFeeBps,
		Paused:               stats.Paused,
	}
}

// formatTxType converts a TxType into a human readable label.
func formatTxType(t types.TxType) string {
	switch t {
	case types.TxTypeTransfer:
		return "Transfer"
	case types.TxTypeRegisterCreator:
		return "RegisterCreator"
	case types.TxTypeUpdateProfile:
		return "UpdateProfile"
	case types.TxTypeTip:
		return "Tip"
	case types.TxTypeSetRevenueSplit:
		return "SetRevenueSplit"
	case types.TxTypeRemoveRevenueSplit:
		return "RemoveRevenueSplit"
	case types.TxTypeMintBadge:
		return "MintBadge"
	case types.TxTypePause:
		return "Pause"
	case types.TxTypeUnpause:
		return "Unpause"
	case types.TxTypeTransferAdmin:
		return "TransferAdmin"
	case types.TxTypeAcceptAdmin:
		return "AcceptAdmin"
	case types.TxTypeSetMinTipAmount:
		return "SetMinTipAmount"
	case types.TxTypeSetPlatformFee:
		return "SetPlatformFee"
	case types.TxTypeSetBadgeThresholds:
		return "SetBadgeThresholds"
	case types.TxTypeWithdrawFees:
		return "WithdrawFees"
	default:
		return fmt.Sprintf("0x%02x", byte(t))
	}
}
