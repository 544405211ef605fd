package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tipvault/core"
	"tipvault/core/types"
	"tipvault/observability"
)

const (
	maxRequestBytes  = 1 << 20 // 1 MiB
	defaultTxsPerMin = 30
	txSeenTTL        = 15 * time.Minute
	limiterIdleTTL   = 10 * time.Minute

	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
)

// ServerConfig tunes the JSON-RPC listener. The zero value serves plaintext
// HTTP with default timeouts and refuses every privileged method because no
// auth token is set.
type ServerConfig struct {
	// AuthToken guards transaction submission and privileged reads. Empty
	// means those methods are rejected outright.
	AuthToken string
	// TxsPerMinute is the per-source submission budget.
	TxsPerMinute int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// TLSCertFile/TLSKeyFile switch the listener to HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string
}

type sourceLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Server exposes the node over JSON-RPC plus a websocket event feed.
type Server struct {
	node *core.Node
	cfg  ServerConfig

	mu       sync.Mutex
	txSeen   map[string]time.Time
	limiters map[string]*sourceLimiter
}

func NewServer(node *core.Node, cfg ServerConfig) *Server {
	if cfg.TxsPerMinute <= 0 {
		cfg.TxsPerMinute = defaultTxsPerMin
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	return &Server{
		node:     node,
		cfg:      cfg,
		txSeen:   make(map[string]time.Time),
		limiters: make(map[string]*sourceLimiter),
	}
}

// Handler returns the full route set so callers can mount it on their own
// listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/ws/events", s.handleEventsWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start serves until the listener fails. TLS is used when the config names a
// certificate pair.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		return srv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"chainId": s.node.ChainID(),
	})
}

// rpcWriter carries the method label so write helpers can record one metric
// sample per request.
type rpcWriter struct {
	http.ResponseWriter
	method   string
	start    time.Time
	observed bool
}

func (rw *rpcWriter) observe(code int) {
	if rw.observed {
		return
	}
	rw.observed = true
	observability.ModuleMetrics().Observe(rw.method, code, time.Since(rw.start))
}

func observeOutcome(w http.ResponseWriter, code int) {
	if rw, ok := w.(*rpcWriter); ok {
		rw.observe(code)
	}
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	rw := &rpcWriter{ResponseWriter: w, start: time.Now()}
	w = rw

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
			observability.ModuleMetrics().RecordThrottle("body_too_large")
		}
		s.writeErr(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		s.writeErr(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		s.writeErr(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	rw.method = req.Method
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "tv_sendTransaction":
		if authErr := s.requireAuth(r); authErr != nil {
			s.writeErr(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSendTransaction(w, r, req, 0)
	case "tv_getBalance":
		s.handleGetBalance(w, r, req)
	case "tipping_register":
		s.handleTypedSend(w, r, req, types.TxTypeRegisterCreator)
	case "tipping_updateProfile":
		s.handleTypedSend(w, r, req, types.TxTypeUpdateProfile)
	case "tipping_tip":
		s.handleTypedSend(w, r, req, types.TxTypeTip)
	case "tipping_setSplit":
		s.handleTypedSend(w, r, req, types.TxTypeSetRevenueSplit)
	case "tipping_removeSplit":
		s.handleTypedSend(w, r, req, types.TxTypeRemoveRevenueSplit)
	case "tipping_mintBadge":
		s.handleTypedSend(w, r, req, types.TxTypeMintBadge)
	case "tipping_pause":
		s.handleTypedSend(w, r, req, types.TxTypePause)
	case "tipping_unpause":
		s.handleTypedSend(w, r, req, types.TxTypeUnpause)
	case "tipping_transferAdmin":
		s.handleTypedSend(w, r, req, types.TxTypeTransferAdmin)
	case "tipping_acceptAdmin":
		s.handleTypedSend(w, r, req, types.TxTypeAcceptAdmin)
	case "tipping_setMinTip":
		s.handleTypedSend(w, r, req, types.TxTypeSetMinTipAmount)
	case "tipping_setFee":
		s.handleTypedSend(w, r, req, types.TxTypeSetPlatformFee)
	case "tipping_setThresholds":
		s.handleTypedSend(w, r, req, types.TxTypeSetBadgeThresholds)
	case "tipping_withdrawFees":
		s.handleTypedSend(w, r, req, types.TxTypeWithdrawFees)
	case "tipping_getProfile":
		s.handleGetProfile(w, r, req)
	case "tipping_isRegistered":
		s.handleIsRegistered(w, r, req)
	case "tipping_getTipRecord":
		s.handleGetTipRecord(w, r, req)
	case "tipping_getSplit":
		s.handleGetSplit(w, r, req)
	case "tipping_listBadges":
		s.handleListBadges(w, r, req)
	case "tipping_listCreators":
		s.handleListCreators(w, r, req)
	case "tipping_getStats":
		s.handleGetStats(w, r, req)
	case "tipping_getParams":
		s.handleGetParams(w, r, req)
	case "tipping_getAdmin":
		if authErr := s.requireAuth(r); authErr != nil {
			s.writeErr(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleGetAdmin(w, r, req)
	case "tipping_getFees":
		if authErr := s.requireAuth(r); authErr != nil {
			s.writeErr(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleGetFees(w, r, req)
	default:
		s.writeErr(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

func (s *Server) writeErr(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	observeOutcome(w, code)
	writeError(w, status, id, code, message, data)
}

func (s *Server) writeOK(w http.ResponseWriter, id interface{}, result interface{}) {
	observeOutcome(w, 0)
	writeResult(w, id, result)
}

// handleTypedSend accepts a signed transaction but pins the expected type so
// a tipping_* method cannot smuggle an unrelated operation.
func (s *Server) handleTypedSend(w http.ResponseWriter, r *http.Request, req *RPCRequest, expected types.TxType) {
	if authErr := s.requireAuth(r); authErr != nil {
		s.writeErr(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	s.handleSendTransaction(w, r, req, expected)
}

func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request, req *RPCRequest, expected types.TxType) {
	if len(req.Params) == 0 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transaction parameter required", nil)
		return
	}

	var tx types.Transaction
	if err := json.Unmarshal(req.Params[0], &tx); err != nil {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid transaction format", err.Error())
		return
	}
	if expected != 0 && tx.Type != expected {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams,
			fmt.Sprintf("method expects a %s transaction", formatTxType(expected)), formatTxType(tx.Type))
		return
	}
	if tx.ChainID != s.node.ChainID() {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transaction chainId does not match this network", tx.ChainID)
		return
	}

	now := time.Now()
	source := clientSource(r)
	if !s.allowSource(source, now) {
		observability.ModuleMetrics().RecordThrottle("tx_rate")
		s.writeErr(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "transaction rate limit exceeded", source)
		return
	}

	hashBytes, err := tx.Hash()
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to hash transaction", err.Error())
		return
	}
	hash := hex.EncodeToString(hashBytes)
	if !s.rememberTx(hash, now) {
		s.writeErr(w, http.StatusConflict, req.ID, codeDuplicateTx, "transaction has already been submitted", hash)
		return
	}

	events, err := s.node.SubmitTransaction(&tx)
	if err != nil {
		s.forgetTx(hash)
		status, code := submitError(err)
		s.writeErr(w, status, req.ID, code, err.Error(), nil)
		return
	}
	s.writeOK(w, req.ID, SubmitResult{
		Hash:   "0x" + hash,
		Type:   formatTxType(tx.Type),
		Events: events,
	})
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.cfg.AuthToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

// allowSource applies the per-source submission budget. Idle limiters are
// pruned on the way through so the map cannot grow without bound.
func (s *Server) allowSource(source string, now time.Time) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(s.limiters, key)
		}
	}

	entry, ok := s.limiters[source]
	if !ok {
		perMin := s.cfg.TxsPerMinute
		entry = &sourceLimiter{
			lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
		}
		s.limiters[source] = entry
	}
	entry.lastSeen = now
	return entry.lim.AllowN(now, 1)
}

// rememberTx suppresses resubmission of the same signed payload within the
// TTL window.
func (s *Server) rememberTx(hash string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h, seenAt := range s.txSeen {
		if now.Sub(seenAt) > txSeenTTL {
			delete(s.txSeen, h)
		}
	}
	if _, exists := s.txSeen[hash]; exists {
		return false
	}
	s.txSeen[hash] = now
	return true
}

// forgetTx lets a rejected transaction be corrected and resubmitted without
// waiting out the duplicate window.
func (s *Server) forgetTx(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.txSeen, hash)
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
