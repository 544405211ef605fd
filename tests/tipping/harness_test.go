package tipping_test

import (
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"tipvault/core"
	"tipvault/core/state"
	"tipvault/core/types"
	"tipvault/crypto"
	"tipvault/native/tipping"
	"tipvault/storage"
)

// harness drives the full transaction path (signature, nonce, overlay commit)
// so the properties below hold end to end, not just inside the engine.
type harness struct {
	t        *testing.T
	manager  *state.Manager
	sp       *core.StateProcessor
	adminKey *ecdsa.PrivateKey
	admin    [20]byte
	vault    [20]byte
	nonces   map[[20]byte]uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	manager := state.NewManager(db)
	sp := core.NewStateProcessor(manager)
	sp.SetNowFunc(func() int64 { return 1_700_000_000 })

	adminKey := newKey(t)
	admin := addrOf(adminKey)
	var vault [20]byte
	vault[19] = 0xFE
	sp.SetVault(vault)

	if _, err := sp.Engine().Initialize(admin); err != nil {
		t.Fatalf("initialize platform: %v", err)
	}
	if err := manager.Commit(); err != nil {
		t.Fatalf("commit genesis: %v", err)
	}
	return &harness{
		t:        t,
		manager:  manager,
		sp:       sp,
		adminKey: adminKey,
		admin:    admin,
		vault:    vault,
		nonces:   make(map[[20]byte]uint64),
	}
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(gethcrypto.S256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func addrOf(key *ecdsa.PrivateKey) [20]byte {
	var addr [20]byte
	copy(addr[:], gethcrypto.PubkeyToAddress(key.PublicKey).Bytes())
	return addr
}

func bech(addr [20]byte) string {
	return crypto.NewAddress(addr[:]).String()
}

func (h *harness) fund(addr [20]byte, amount int64) {
	h.t.Helper()
	account, err := h.manager.GetAccount(addr[:])
	if err != nil {
		h.t.Fatalf("get account: %v", err)
	}
	account.Balance = new(big.Int).Add(account.Balance, big.NewInt(amount))
	if err := h.manager.PutAccount(addr[:], account); err != nil {
		h.t.Fatalf("put account: %v", err)
	}
	if err := h.manager.Commit(); err != nil {
		h.t.Fatalf("commit funding: %v", err)
	}
}

func (h *harness) balance(addr [20]byte) *big.Int {
	h.t.Helper()
	account, err := h.manager.GetAccount(addr[:])
	if err != nil {
		h.t.Fatalf("get account: %v", err)
	}
	return account.Balance
}

// apply signs and submits a transaction for key, tracking nonces per signer.
func (h *harness) apply(key *ecdsa.PrivateKey, tx *types.Transaction) ([]types.Event, error) {
	h.t.Helper()
	signer := addrOf(key)
	tx.Nonce = h.nonces[signer]
	tx.ChainID = types.ChainID()
	if err := tx.Sign(key); err != nil {
		h.t.Fatalf("sign transaction: %v", err)
	}
	events, err := h.sp.ApplyTransaction(tx)
	if err == nil {
		h.nonces[signer]++
	}
	return events, err
}

func (h *harness) mustApply(key *ecdsa.PrivateKey, tx *types.Transaction) []types.Event {
	h.t.Helper()
	events, err := h.apply(key, tx)
	if err != nil {
		h.t.Fatalf("apply %d transaction: %v", tx.Type, err)
	}
	return events
}

func (h *harness) register(key *ecdsa.PrivateKey, name string) {
	h.t.Helper()
	h.mustApply(key, &types.Transaction{
		Type: types.TxTypeRegisterCreator,
		Data: payload(h.t, types.ProfilePayload{
			Name:     name,
			Bio:      "long form writing",
			Category: "education",
		}),
	})
}

func (h *harness) tip(key *ecdsa.PrivateKey, creator [20]byte, amount int64, message string) ([]types.Event, error) {
	h.t.Helper()
	return h.apply(key, &types.Transaction{
		Type:  types.TxTypeTip,
		To:    h.vault[:],
		Value: big.NewInt(amount),
		Data:  payload(h.t, types.TipPayload{Creator: bech(creator), Message: message}),
	})
}

func payload(t *testing.T, src interface{}) []byte {
	t.Helper()
	data, err := types.EncodePayload(src)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return data
}

// snapshot captures everything a rejected call must leave untouched.
type snapshot struct {
	stats    tipping.PlatformStats
	balances map[[20]byte]string
	nonces   map[[20]byte]uint64
}

func (h *harness) snapshot(accounts ...[20]byte) snapshot {
	h.t.Helper()
	stats, err := h.sp.Engine().PlatformStats()
	if err != nil {
		h.t.Fatalf("platform stats: %v", err)
	}
	snap := snapshot{
		stats:    *stats,
		balances: make(map[[20]byte]string, len(accounts)),
		nonces:   make(map[[20]byte]uint64, len(accounts)),
	}
	for _, addr := range accounts {
		account, err := h.manager.GetAccount(addr[:])
		if err != nil {
			h.t.Fatalf("get account: %v", err)
		}
		snap.balances[addr] = account.Balance.String()
		snap.nonces[addr] = account.Nonce
	}
	return snap
}

func (h *harness) requireUnchanged(before snapshot) {
	h.t.Helper()
	after := h.snapshot()
	if before.stats.TotalTipCount != after.stats.TotalTipCount ||
		before.stats.TotalValueProcessed.Cmp(after.stats.TotalValueProcessed) != 0 ||
		before.stats.TotalCreators != after.stats.TotalCreators ||
		before.stats.TotalFeesAccumulated.Cmp(after.stats.TotalFeesAccumulated) != 0 {
		h.t.Fatalf("platform stats changed across a rejected call: %+v -> %+v", before.stats, after.stats)
	}
	for addr, balance := range before.balances {
		account, err := h.manager.GetAccount(addr[:])
		if err != nil {
			h.t.Fatalf("get account: %v", err)
		}
		if account.Balance.String() != balance {
			h.t.Fatalf("balance of %x changed across a rejected call: %s -> %s", addr, balance, account.Balance)
		}
		if account.Nonce != before.nonces[addr] {
			h.t.Fatalf("nonce of %x changed across a rejected call: %d -> %d", addr, before.nonces[addr], account.Nonce)
		}
	}
}
