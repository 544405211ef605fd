package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tipvault/core/types"
	"tipvault/gateway/idempotency"
	"tipvault/gateway/middleware"
)

const (
	submitRequestLimit   = 1 << 20 // 1 MiB
	defaultSubmitTimeout = 10 * time.Second

	// HeaderIdempotencyKey lets a client retry a submission safely: the
	// first response is cached and replayed for the same key.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay marks a response served from the cache.
	HeaderIdempotentReplay = "Idempotent-Replay"
)

// submitMethods lists the node RPC methods the bridge will forward.
var submitMethods = map[string]struct{}{
	"tv_sendTransaction":    {},
	"tipping_register":      {},
	"tipping_updateProfile": {},
	"tipping_tip":           {},
	"tipping_setSplit":      {},
	"tipping_removeSplit":   {},
	"tipping_mintBadge":     {},
	"tipping_pause":         {},
	"tipping_unpause":       {},
	"tipping_transferAdmin": {},
	"tipping_acceptAdmin":   {},
	"tipping_setMinTip":     {},
	"tipping_setFee":        {},
	"tipping_setThresholds": {},
	"tipping_withdrawFees":  {},
}

// submitRoutes forwards signed transactions to the node RPC, attaching the
// gateway's node credential and replaying cached responses for retried
// idempotency keys.
type submitRoutes struct {
	target  *url.URL
	client  *http.Client
	token   string
	timeout time.Duration
	store   *idempotency.Store
	logger  *slog.Logger
}

type submitRequest struct {
	JSONRPC string            `json:"jsonrpc,omitempty"`
	ID      json.RawMessage   `json:"id,omitempty"`
	Method  string            `json:"method,omitempty"`
	Params  []json.RawMessage `json:"params"`
}

func newSubmitRoutes(target *url.URL, token string, timeout time.Duration, store *idempotency.Store, logger *slog.Logger) (*submitRoutes, error) {
	if target == nil {
		return nil, errors.New("nil submit target")
	}
	cloned := *target
	if strings.TrimSpace(cloned.Scheme) == "" {
		return nil, errors.New("submit target scheme required")
	}
	if strings.TrimSpace(cloned.Host) == "" {
		return nil, errors.New("submit target host required")
	}
	if strings.TrimSpace(cloned.Path) == "" {
		cloned.Path = "/"
	}
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &submitRoutes{
		target: &cloned,
		client: &http.Client{
			Timeout:   timeout + 5*time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		token:   strings.TrimSpace(token),
		timeout: timeout,
		store:   store,
		logger:  logger,
	}, nil
}

func (sr *submitRoutes) mount(r chi.Router) {
	r.Post("/tx/send", sr.send)
}

func (sr *submitRoutes) send(w http.ResponseWriter, r *http.Request) {
	if sr == nil || sr.target == nil {
		writeInternalError(w, errors.New("submission route misconfigured"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, submitRequestLimit))
	if err != nil {
		writeBadRequest(w, fmt.Errorf("read request body: %w", err))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeBadRequest(w, errors.New("request body is empty"))
		return
	}

	var req submitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeBadRequest(w, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		req.Method = "tv_sendTransaction"
	}
	if _, ok := submitMethods[req.Method]; !ok {
		writeBadRequest(w, fmt.Errorf("unsupported method %q", req.Method))
		return
	}
	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}
	if len(req.Params) == 0 {
		writeBadRequest(w, errors.New("transaction parameter required"))
		return
	}

	var tx types.Transaction
	if err := json.Unmarshal(req.Params[0], &tx); err != nil {
		writeBadRequest(w, fmt.Errorf("decode transaction: %w", err))
		return
	}
	if !supportedTxType(tx.Type) {
		writeBadRequest(w, fmt.Errorf("unsupported transaction type 0x%02x", byte(tx.Type)))
		return
	}

	idemKey := scopedIdempotencyKey(r)
	if sr.store != nil && idemKey != "" {
		record, ok, err := sr.store.Get(idemKey, time.Now())
		if err != nil {
			sr.logger.Warn("idempotency lookup failed", "error", err)
		} else if ok {
			replay(w, record)
			return
		}
	}

	forwardBody, err := json.Marshal(req)
	if err != nil {
		writeInternalError(w, fmt.Errorf("encode upstream request: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sr.timeout)
	defer cancel()

	forwardReq, err := http.NewRequestWithContext(ctx, http.MethodPost, sr.target.String(), bytes.NewReader(forwardBody))
	if err != nil {
		writeInternalError(w, fmt.Errorf("build upstream request: %w", err))
		return
	}
	forwardReq.Header.Set("Content-Type", "application/json")
	if sr.token != "" {
		forwardReq.Header.Set("Authorization", "Bearer "+sr.token)
	}
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if remote := clientIP(r.RemoteAddr); remote != "" {
		if forwarded != "" {
			forwarded = fmt.Sprintf("%s, %s", forwarded, remote)
		} else {
			forwarded = remote
		}
	}
	if forwarded != "" {
		forwardReq.Header.Set("X-Forwarded-For", forwarded)
	}

	resp, err := sr.client.Do(forwardReq)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, fmt.Errorf("forward request: %w", err))
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, submitRequestLimit))
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, fmt.Errorf("read upstream response: %w", err))
		return
	}

	if sr.store != nil && idemKey != "" && cacheable(resp.StatusCode, respBody) {
		record := idempotency.Record{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        respBody,
		}
		if err := sr.store.Put(idemKey, record, time.Now()); err != nil {
			sr.logger.Warn("idempotency store failed", "error", err)
		}
	}

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)
}

// scopedIdempotencyKey namespaces the caller-supplied key by the JWT subject
// so two clients cannot collide on (or probe) each other's cached responses.
func scopedIdempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key == "" {
		return ""
	}
	return middleware.Subject(r.Context()) + "|" + key
}

// cacheable accepts only completed submissions: a 200 whose JSON-RPC envelope
// carries a result. Failed submissions stay retryable.
func cacheable(status int, body []byte) bool {
	if status != http.StatusOK {
		return false
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return len(envelope.Error) == 0 && len(envelope.Result) > 0
}

func replay(w http.ResponseWriter, record idempotency.Record) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set(HeaderIdempotentReplay, "true")
	w.WriteHeader(record.StatusCode)
	_, _ = w.Write(record.Body)
}

func supportedTxType(t types.TxType) bool {
	switch t {
	case types.TxTypeTransfer,
		types.TxTypeRegisterCreator,
		types.TxTypeUpdateProfile,
		types.TxTypeTip,
		types.TxTypeSetRevenueSplit,
		types.TxTypeRemoveRevenueSplit,
		types.TxTypeMintBadge,
		types.TxTypePause,
		types.TxTypeUnpause,
		types.TxTypeTransferAdmin,
		types.TxTypeAcceptAdmin,
		types.TxTypeSetMinTipAmount,
		types.TxTypeSetPlatformFee,
		types.TxTypeSetBadgeThresholds,
		types.TxTypeWithdrawFees:
		return true
	default:
		return false
	}
}
