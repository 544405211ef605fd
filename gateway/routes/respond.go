package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"tipvault/sdk/tipvault"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusInternalServerError, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// writeUpstreamError translates node RPC failures into REST status codes.
// Anything without a recognised code is reported as a bad gateway so callers
// can distinguish node trouble from their own input.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var rpcErr *tipvault.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case tipvault.CodeNotRegistered:
			writeJSONError(w, http.StatusNotFound, errors.New("creator not registered"))
		case tipvault.CodeInvalidParams:
			writeJSONError(w, http.StatusBadRequest, errors.New(rpcErr.Message))
		case tipvault.CodeRateLimited:
			writeJSONError(w, http.StatusTooManyRequests, errors.New(rpcErr.Message))
		default:
			writeJSONError(w, http.StatusBadGateway, fmt.Errorf("node error: %s", rpcErr.Message))
		}
		return
	}
	writeJSONError(w, http.StatusBadGateway, fmt.Errorf("node unreachable: %v", err))
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		// Skip Content-Length so the server recomputes it for the body
		// actually written.
		if strings.EqualFold(key, "Content-Length") {
			continue
		}
		dst.Del(key)
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func clientIP(addr string) string {
	host := strings.TrimSpace(addr)
	if host == "" {
		return ""
	}
	if parsedHost, _, err := net.SplitHostPort(host); err == nil {
		host = parsedHost
	}
	return strings.TrimSpace(host)
}
