// Package tipvault provides a typed Go client for the node's JSON-RPC
// surface. Transactions are signed locally; the node never sees a key.
package tipvault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tipvault/core/types"
)

const defaultTimeout = 30 * time.Second

// Error codes returned by the node. Mirrors the server's wire contract so
// callers can branch on failures without parsing messages.
const (
	CodeServerError    = -32000
	CodeUnauthorized   = -32001
	CodeDuplicateTx    = -32010
	CodeRateLimited    = -32020
	CodeInvalidParams  = -32602
	CodeTxRejected     = -32030
	CodePaused         = -32031
	CodeNotAuthorized  = -32032
	CodeNotRegistered  = -32033
	CodeAlreadyExists  = -32034
	CodeAmountTooSmall = -32035
	CodeSelfReference  = -32036
	CodeIntegrity      = -32037
	CodeInsufficient   = -32038
)

// RPCError is a structured failure returned by the node.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsCode reports whether err is an RPCError carrying the given code.
func IsCode(err error, code int) bool {
	rpcErr, ok := err.(*RPCError)
	return ok && rpcErr.Code == code
}

// Client talks to one tipvault node.
type Client struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	nextID     atomic.Int64
}

// Option mutates the client configuration during construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithAuthToken attaches a bearer token to every request so privileged
// methods succeed.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = strings.TrimSpace(token)
	}
}

// WithTimeout replaces the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// New constructs a client pointed at the node's JSON-RPC endpoint. Outbound
// requests carry trace propagation headers.
func New(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	client := &Client{
		endpoint: trimmed,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return client, nil
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int64             `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	raw := make([]json.RawMessage, 0, len(params))
	for _, param := range params {
		encoded, err := json.Marshal(param)
		if err != nil {
			return fmt.Errorf("encode param: %w", err)
		}
		raw = append(raw, encoded)
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  raw,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out != nil && len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// SubmitResult reports an accepted transaction and the events it emitted.
type SubmitResult struct {
	Hash   string        `json:"hash"`
	Type   string        `json:"type"`
	Events []types.Event `json:"events"`
}

// Balance is the account view returned by tv_getBalance.
type Balance struct {
	Address     string   `json:"address"`
	Balance     *big.Int `json:"balance"`
	Nonce       uint64   `json:"nonce"`
	AuthAddress string   `json:"authAddress,omitempty"`
}

// Profile mirrors the node's creator view.
type Profile struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Bio          string `json:"bio"`
	Category     string `json:"category"`
	ImageURL     string `json:"imageUrl"`
	TipsReceived string `json:"tipsReceived"`
	TipCount     uint64 `json:"tipCount"`
	RegisteredAt uint64 `json:"registeredAt"`
	Split        *Split `json:"split,omitempty"`
}

// Split mirrors a configured revenue split.
type Split struct {
	Collaborator string `json:"collaborator"`
	Name         string `json:"name"`
	Percent      uint8  `json:"percent"`
}

// Badge mirrors one minted appreciation token.
type Badge struct {
	TokenID   string `json:"tokenId"`
	Creator   string `json:"creator"`
	Supporter string `json:"supporter"`
	Tier      uint8  `json:"tier"`
	TierName  string `json:"tierName"`
	MintedAt  uint64 `json:"mintedAt"`
}

// Stats mirrors the aggregate platform snapshot.
type Stats struct {
	TotalCreators        uint64 `json:"totalCreators"`
	TotalValueProcessed  string `json:"totalValueProcessed"`
	TotalTipCount        uint64 `json:"totalTipCount"`
	TotalBadgesMinted    uint64 `json:"totalBadgesMinted"`
	TotalFeesAccumulated string `json:"totalFeesAccumulated"`
	MinTipAmount         string `json:"minTipAmount"`
	PlatformFeeBps       uint32 `json:"platformFeeBps"`
	Paused               bool   `json:"paused"`
}

// Params mirrors the admin-tunable settings plus the vault address.
type Params struct {
	MinTipAmount    string   `json:"minTipAmount"`
	PlatformFeeBps  uint32   `json:"platformFeeBps"`
	BadgeThresholds []string `json:"badgeThresholds"`
	Vault           string   `json:"vault"`
	Paused          bool     `json:"paused"`
}

// Admin mirrors the privileged admin view.
type Admin struct {
	Admin        string `json:"admin"`
	PendingAdmin string `json:"pendingAdmin,omitempty"`
}

// Fees mirrors the privileged fee ledger view.
type Fees struct {
	Accumulated    string `json:"accumulated"`
	RetainedSplits string `json:"retainedSplits"`
	VaultBalance   string `json:"vaultBalance"`
	Reserve        string `json:"reserve"`
}

// TipRecord is a creator's audit pair.
type TipRecord struct {
	Address      string `json:"address"`
	TipsReceived string `json:"tipsReceived"`
	TipCount     uint64 `json:"tipCount"`
}

// SendTransaction submits any signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (*SubmitResult, error) {
	var result SubmitResult
	if err := c.call(ctx, "tv_sendTransaction", &result, tx); err != nil {
		return nil, err
	}
	return &result, nil
}

// Submit routes a signed transaction through its type-pinned method so the
// node rejects mismatched payloads before execution.
func (c *Client) Submit(ctx context.Context, tx *types.Transaction) (*SubmitResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	method, ok := methodForType(tx.Type)
	if !ok {
		return c.SendTransaction(ctx, tx)
	}
	var result SubmitResult
	if err := c.call(ctx, method, &result, tx); err != nil {
		return nil, err
	}
	return &result, nil
}

func methodForType(t types.TxType) (string, bool) {
	switch t {
	case types.TxTypeRegisterCreator:
		return "tipping_register", true
	case types.TxTypeUpdateProfile:
		return "tipping_updateProfile", true
	case types.TxTypeTip:
		return "tipping_tip", true
	case types.TxTypeSetRevenueSplit:
		return "tipping_setSplit", true
	case types.TxTypeRemoveRevenueSplit:
		return "tipping_removeSplit", true
	case types.TxTypeMintBadge:
		return "tipping_mintBadge", true
	case types.TxTypePause:
		return "tipping_pause", true
	case types.TxTypeUnpause:
		return "tipping_unpause", true
	case types.TxTypeTransferAdmin:
		return "tipping_transferAdmin", true
	case types.TxTypeAcceptAdmin:
		return "tipping_acceptAdmin", true
	case types.TxTypeSetMinTipAmount:
		return "tipping_setMinTip", true
	case types.TxTypeSetPlatformFee:
		return "tipping_setFee", true
	case types.TxTypeSetBadgeThresholds:
		return "tipping_setThresholds", true
	case types.TxTypeWithdrawFees:
		return "tipping_withdrawFees", true
	default:
		return "", false
	}
}

// GetBalance returns the ledger view of an address.
func (c *Client) GetBalance(ctx context.Context, address string) (*Balance, error) {
	var result Balance
	if err := c.call(ctx, "tv_getBalance", &result, address); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetProfile returns a registered creator's profile.
func (c *Client) GetProfile(ctx context.Context, address string) (*Profile, error) {
	var result Profile
	if err := c.call(ctx, "tipping_getProfile", &result, address); err != nil {
		return nil, err
	}
	return &result, nil
}

// IsRegistered reports whether the address holds a profile.
func (c *Client) IsRegistered(ctx context.Context, address string) (bool, error) {
	var result bool
	if err := c.call(ctx, "tipping_isRegistered", &result, address); err != nil {
		return false, err
	}
	return result, nil
}

// GetTipRecord returns the audit pair for a creator.
func (c *Client) GetTipRecord(ctx context.Context, address string) (*TipRecord, error) {
	var result TipRecord
	if err := c.call(ctx, "tipping_getTipRecord", &result, address); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSplit returns the creator's revenue split, nil when none is set.
func (c *Client) GetSplit(ctx context.Context, address string) (*Split, error) {
	var result *Split
	if err := c.call(ctx, "tipping_getSplit", &result, address); err != nil {
		return nil, err
	}
	return result, nil
}

// ListBadges returns every badge minted against a creator.
func (c *Client) ListBadges(ctx context.Context, creator string) ([]Badge, error) {
	var result []Badge
	if err := c.call(ctx, "tipping_listBadges", &result, creator); err != nil {
		return nil, err
	}
	return result, nil
}

// ListCreators returns every registered creator address.
func (c *Client) ListCreators(ctx context.Context) ([]string, error) {
	var result []string
	if err := c.call(ctx, "tipping_listCreators", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetStats returns the aggregate platform snapshot.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var result Stats
	if err := c.call(ctx, "tipping_getStats", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetParams returns the platform parameters and vault address.
func (c *Client) GetParams(ctx context.Context) (*Params, error) {
	var result Params
	if err := c.call(ctx, "tipping_getParams", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAdmin returns the admin identities. Requires the auth token.
func (c *Client) GetAdmin(ctx context.Context) (*Admin, error) {
	var result Admin
	if err := c.call(ctx, "tipping_getAdmin", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetFees returns the fee ledger. Requires the auth token.
func (c *Client) GetFees(ctx context.Context) (*Fees, error) {
	var result Fees
	if err := c.call(ctx, "tipping_getFees", &result); err != nil {
		return nil, err
	}
	return &result, nil
}
