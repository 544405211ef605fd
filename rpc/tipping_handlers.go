package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"tipvault/crypto"
	"tipvault/native/tipping"
)

// parseAddressParam accepts either a bare bech32 string or an object wrapping
// one under "address".
func parseAddressParam(raw json.RawMessage) ([20]byte, error) {
	var zero [20]byte
	if raw == nil {
		return zero, fmt.Errorf("address parameter required")
	}

	var direct string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return decodeBech(direct)
	}

	var wrapper struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Address != "" {
		return decodeBech(wrapper.Address)
	}

	return zero, fmt.Errorf("invalid address parameter")
}

func decodeBech(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

// queryError maps read failures onto RPC codes.
func (s *Server) queryError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, tipping.ErrNotRegistered):
		s.writeErr(w, http.StatusNotFound, id, codeNotRegistered, err.Error(), nil)
	case errors.Is(err, tipping.ErrValidation):
		s.writeErr(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		s.writeErr(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address parameter required", nil)
		return
	}
	addr, err := parseAddressParam(req.Params[0])
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address parameter", err.Error())
		return
	}
	account, err := s.node.GetAccount(addr[:])
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load account", err.Error())
		return
	}
	result := BalanceResult{
		Address: formatAddress(addr),
		Balance: account.Balance,
		Nonce:   account.Nonce,
	}
	if len(account.AuthAddress) == 20 {
		result.AuthAddress = crypto.NewAddress(account.AuthAddress).String()
	}
	s.writeOK(w, req.ID, result)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address parameter required", nil)
		return
	}
	addr, err := parseAddressParam(req.Params[0])
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address parameter", err.Error())
		return
	}
	var profile *tipping.Profile
	if err := s.node.Query(func(engine *tipping.Engine) error {
		var qerr error
		profile, qerr = engine.Profile(addr)
		return qerr
	}); err != nil {
		s.queryError(w, req.ID, err)
		return
	}
	s.writeOK(w, req.ID, formatProfile(profile))
}

func (s *Server) handleIsRegistered(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address parameter required", nil)
		return
	}
	addr, err := parseAddressParam(req.Params[0])
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address parameter", err.Error())
		return
	}
	var registered bool
	if err := s.node.Query(func(engine *tipping.Engine) error {
		var qerr error
		registered, qerr = engine.IsRegistered(addr)
		return qerr
	}); err != nil {
		s.queryError(w, req.ID, err)
		return
	}
	s.writeOK(w, req.ID, registered)
}

func (s *Server) handleGetTipRecord(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address parameter required", nil)
		return
	}
	addr, err := parseAddressParam(req.Params[0])
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address parameter", err.Error())
		return
	}
	var record *tipping.TipRecord
	if err := s.node.Query(func(engine *tipping.Engine) error {
		var qerr error
		record, qerr = engine.TipRecord(addr)
		return qerr
	}); err != nil {
		s.queryError(w, req.ID, err)
		return
	}
	s.writeOK(w, req.ID, TipRecordResult{
		Address:      formatAddress(addr),
		TipsReceived: bigString(record.TipsReceived),
		TipCount:     record.TipCount,
	})
}

func (s *Server) handleGetSplit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address parameter required", nil)
		return
	}
	addr, err := parseAddressParam(req.Params[0])
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address parameter", err.Error())
		return
	}
	var split *tipping.RevenueSplit
	if err := s.node.Query(func(engine *tipping.Engine) error {
		var qerr error
		split, qerr = engine.RevenueSplit(addr)
		return qerr
	}); err != nil {
		s.queryError(w, req.ID, err)
		return
	}
	if split == nil {
		s.writeOK(w, req.ID, nil)
		return
	}
	s.writeOK(w, req.ID, SplitResult{
		Collaborator: formatAddress(split.Collaborator),
		Name:         split.Name,
		Percent:      split.Percent,
	})
}

func (s *Server) handleListBadges(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "creator parameter required", nil)
		return
	}
	addr, err := parseAddressParam(req.Params[0])
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator parameter", err.Error())
		return
	}
	var badges []*tipping.Badge
	if err := s.node.Query(func(engine *tipping.Engine) error {
		var qerr error
		badges, qerr = engine.Badges(addr)
		return qerr
	}); err != nil {
		s.queryError(w, req.ID, err)
		return
	}
	results := make([]BadgeResult, 0, len(badges))
	for _, badge := range badges {
		results = append(results, formatBadge(badge))
	}
	s.writeOK(w, req.ID, results)
}

func (s *Server) handleListCreators(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	var creators [][20]byte
	if err := s.node.Query(func(engine *tipping.Engine) error {
		var qerr error
		creators, qerr = engine.Creators()
		return qerr
	}); err != nil {
		s.queryError(w, req.ID, err)
		return
	}
	results := make([]string, 0, len(creators))
	for _, creator := range creators {
		results = append(results, formatAddress(creator))
	}
	s.writeOK(w, req.ID, results)
}

func (s *Server) handleGetStats(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	var stats *tipping.PlatformStats
	if err := s.node.Query(func(engine *tipping.Engine) error {
		var qerr error
		stats, qerr = engine.PlatformStats()
		return qerr
	}); err != nil {
		s.queryError(w, req.ID, err)
		return
	}
	s.writeOK(w, req.ID, formatStats(stats))
}

func (s *Server) handleGetParams(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	result := ParamsResult{Vault: formatAddress(s.node.Vault())}
	if err := s.node.Query(func(engine *tipping.Engine) error {
		minTip, qerr := engine.MinTipAmount()
		if qerr != nil {
			return qerr
		}
		fee, qerr := engine.PlatformFee()
		if qerr != nil {
			return qerr
		}
		thresholds, qerr := engine.BadgeThresholds()
		if qerr != nil {
			return qerr
		}
		paused, qerr := engine.IsPaused()
		if qerr != nil {
			return qerr
		}
		result.MinTipAmount = bigString(minTip)
		result.PlatformFeeBps = fee
		result.Paused = paused
		result.BadgeThresholds = make([]string, 0, len(thresholds))
		for _, threshold := range thresholds {
			result.BadgeThresholds = append(result.BadgeThresholds, bigString(threshold))
		}
		return nil
	}); err != nil {
		s.queryError(w, req.ID, err)
		return
	}
	s.writeOK(w, req.ID, result)
}

func (s *Server) handleGetAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	var result AdminResult
	if err := s.node.Query(func(engine *tipping.Engine) error {
		admin, qerr := engine.Admin()
		if qerr != nil {
			return qerr
		}
		pending, qerr := engine.PendingAdmin()
		if qerr != nil {
			return qerr
		}
		result.Admin = formatAddress(admin)
		if pending != ([20]byte{}) {
			result.PendingAdmin = formatAddress(pending)
		}
		return nil
	}); err != nil {
		s.queryError(w, req.ID, err)
		return
	}
	s.writeOK(w, req.ID, result)
}

func (s *Server) handleGetFees(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		s.writeErr(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	var result FeesResult
	if err := s.node.Query(func(engine *tipping.Engine) error {
		fees, qerr := engine.FeesAccumulated()
		if qerr != nil {
			return qerr
		}
		retained, qerr := engine.RetainedSplits()
		if qerr != nil {
			return qerr
		}
		result.Accumulated = bigString(fees)
		result.RetainedSplits = bigString(retained)
		return nil
	}); err != nil {
		s.queryError(w, req.ID, err)
		return
	}
	vault := s.node.Vault()
	account, err := s.node.GetAccount(vault[:])
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load vault account", err.Error())
		return
	}
	result.VaultBalance = bigString(account.Balance)
	result.Reserve = tipping.MinimumVaultReserve().String()
	s.writeOK(w, req.ID, result)
}
