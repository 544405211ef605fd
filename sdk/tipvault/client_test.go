package tipvault

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"tipvault/core/types"
	"tipvault/crypto"
)

type capturedRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int64             `json:"id"`
	Auth    string            `json:"-"`
}

type stubServer struct {
	mu       sync.Mutex
	requests []capturedRequest
	respond  func(method string) (interface{}, *RPCError)
	server   *httptest.Server
}

func newStubServer(t *testing.T, respond func(method string) (interface{}, *RPCError)) *stubServer {
	t.Helper()
	stub := &stubServer{respond: respond}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
			return
		}
		var req capturedRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		req.Auth = r.Header.Get("Authorization")
		stub.mu.Lock()
		stub.requests = append(stub.requests, req)
		stub.mu.Unlock()

		result, rpcErr := stub.respond(req.Method)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *stubServer) last(t *testing.T) capturedRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		t.Fatalf("no requests captured")
	}
	return s.requests[len(s.requests)-1]
}

func testKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestClientShapesRequestAndDecodesResult(t *testing.T) {
	stub := newStubServer(t, func(method string) (interface{}, *RPCError) {
		return Profile{Address: "tv1qqqq", Name: "ada", TipCount: 3}, nil
	})
	client, err := New(stub.server.URL, WithAuthToken("secret"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	profile, err := client.GetProfile(context.Background(), "tv1qqqq")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Name != "ada" || profile.TipCount != 3 {
		t.Fatalf("unexpected profile %+v", profile)
	}

	req := stub.last(t)
	if req.JSONRPC != "2.0" || req.Method != "tipping_getProfile" {
		t.Fatalf("unexpected request envelope %+v", req)
	}
	if req.Auth != "Bearer secret" {
		t.Fatalf("expected bearer header, got %q", req.Auth)
	}
	if len(req.Params) != 1 {
		t.Fatalf("expected one param, got %d", len(req.Params))
	}
	var addr string
	if err := json.Unmarshal(req.Params[0], &addr); err != nil || addr != "tv1qqqq" {
		t.Fatalf("unexpected address param %q err=%v", addr, err)
	}
}

func TestClientSurfacesRPCErrors(t *testing.T) {
	stub := newStubServer(t, func(method string) (interface{}, *RPCError) {
		return nil, &RPCError{Code: -32033, Message: "creator not registered"}
	})
	client, err := New(stub.server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.GetProfile(context.Background(), "tv1qqqq")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsCode(err, -32033) {
		t.Fatalf("expected code -32033, got %v", err)
	}
}

func TestSubmitRoutesThroughTypedMethod(t *testing.T) {
	stub := newStubServer(t, func(method string) (interface{}, *RPCError) {
		return SubmitResult{Hash: "0xabc", Type: "RegisterCreator"}, nil
	})
	client, err := New(stub.server.URL, WithAuthToken("secret"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	tx, err := NewRegisterTx(testKey(t), 0, "ada", "essays", "writing", "")
	if err != nil {
		t.Fatalf("build tx: %v", err)
	}
	result, err := client.Submit(context.Background(), tx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Hash != "0xabc" {
		t.Fatalf("unexpected hash %q", result.Hash)
	}
	if req := stub.last(t); req.Method != "tipping_register" {
		t.Fatalf("expected typed method, got %q", req.Method)
	}
}

func TestTipBuilderProducesVaultBoundTransaction(t *testing.T) {
	key := testKey(t)
	creatorKey := testKey(t)
	creator := creatorKey.PubKey().Address()
	vault := crypto.ModuleAddress("vault")

	tx, err := NewTipTx(key, 4, vault.String(), creator.String(), "2000000", "great essay")
	if err != nil {
		t.Fatalf("build tip: %v", err)
	}
	if tx.Type != types.TxTypeTip || tx.Nonce != 4 {
		t.Fatalf("unexpected tx %+v", tx)
	}
	if crypto.NewAddress(tx.To).String() != vault.String() {
		t.Fatalf("expected vault destination, got %x", tx.To)
	}
	if tx.Value.String() != "2000000" {
		t.Fatalf("unexpected value %s", tx.Value)
	}

	var payload types.TipPayload
	if err := types.DecodePayload(tx.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Creator != creator.String() || payload.Message != "great essay" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	from, err := tx.From()
	if err != nil {
		t.Fatalf("recover signer: %v", err)
	}
	if crypto.NewAddress(from).String() != key.PubKey().Address().String() {
		t.Fatalf("signature does not recover to signer")
	}
}

func TestBuildersValidateInputs(t *testing.T) {
	key := testKey(t)
	vault := crypto.ModuleAddress("vault").String()
	creator := testKey(t).PubKey().Address().String()

	if _, err := NewTipTx(key, 0, vault, creator, "-5", "x"); err == nil {
		t.Fatalf("expected negative amount rejection")
	}
	if _, err := NewTipTx(key, 0, vault, "not-bech32", "100", "x"); err == nil {
		t.Fatalf("expected bad creator rejection")
	}
	if _, err := NewRegisterTx(key, 0, "   ", "", "", ""); err == nil {
		t.Fatalf("expected empty name rejection")
	}
	if _, err := NewSetSplitTx(key, 0, creator, "bob", 0); err == nil {
		t.Fatalf("expected zero percent rejection")
	}
	if _, err := NewTransferTx(nil, 0, creator, "100"); err == nil {
		t.Fatalf("expected missing key rejection")
	}
}
