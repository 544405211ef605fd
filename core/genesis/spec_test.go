// core/genesis/spec_test.go
package genesis

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tipvault/core/state"
	"tipvault/crypto"
	"tipvault/native/tipping"
	"tipvault/storage"
)

func testAddr(last byte) crypto.Address {
	b := bytes.Repeat([]byte{0x00}, 20)
	b[19] = last
	return crypto.NewAddress(b)
}

func writeSpecFile(t *testing.T, spec *Spec) string {
	t.Helper()
	raw, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("marshal spec: %v", err)
	}
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

func TestLoadSpecAndApply(t *testing.T) {
	admin := testAddr(0x01)
	funded := testAddr(0x02)
	fee := uint32(100)

	path := writeSpecFile(t, &Spec{
		GenesisTime:     "2024-01-01T00:00:00Z",
		ChainID:         7476,
		Admin:           admin.String(),
		MinTipAmount:    "250000",
		PlatformFeeBps:  &fee,
		BadgeThresholds: []string{"1000000", "10000000", "100000000", "1000000000"},
		Alloc:           map[string]string{funded.String(): "5000000"},
	})

	spec, err := Load(path)
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}

	db := storage.NewMemDB()
	manager := state.NewManager(db)
	if err := Apply(manager, spec); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}

	account, err := manager.GetAccount(funded.Bytes())
	if err != nil {
		t.Fatalf("get funded account: %v", err)
	}
	if account.Balance.Int64() != 5_000_000 {
		t.Fatalf("funded balance = %s, want 5000000", account.Balance)
	}

	platform, ok, err := manager.TippingPlatformGet()
	if err != nil || !ok {
		t.Fatalf("platform record missing: ok=%v err=%v", ok, err)
	}
	var wantAdmin [20]byte
	copy(wantAdmin[:], admin.Bytes())
	if platform.Admin != wantAdmin {
		t.Fatalf("platform admin = %x, want %x", platform.Admin, wantAdmin)
	}
	if platform.PlatformFeeBps != 100 {
		t.Fatalf("platform fee = %d, want 100", platform.PlatformFeeBps)
	}
	if platform.MinTipAmount.Int64() != 250_000 {
		t.Fatalf("min tip = %s, want 250000", platform.MinTipAmount)
	}
	if platform.BadgeThresholds[0].Int64() != 1_000_000 {
		t.Fatalf("bronze threshold = %s", platform.BadgeThresholds[0])
	}

	// The vault defaults to the module address when the spec omits it.
	if spec.VaultAddress() != defaultVaultAddress() {
		t.Fatalf("vault = %x, want module address", spec.VaultAddress())
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	admin := testAddr(0x01)
	spec := DevSpec(7476, admin)
	if err := spec.Validate(); err != nil {
		t.Fatalf("validate dev spec: %v", err)
	}

	db := storage.NewMemDB()
	manager := state.NewManager(db)
	if err := Apply(manager, spec); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	before := db.Len()
	if err := Apply(manager, spec); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if db.Len() != before {
		t.Fatalf("idempotent apply grew the database from %d to %d keys", before, db.Len())
	}
}

func TestApplyRejectsForeignDatabase(t *testing.T) {
	admin := testAddr(0x01)
	spec := DevSpec(7476, admin)

	db := storage.NewMemDB()
	manager := state.NewManager(db)
	if err := Apply(manager, spec); err != nil {
		t.Fatalf("apply: %v", err)
	}

	other := DevSpec(9999, admin)
	if err := Apply(manager, other); !errors.Is(err, ErrChainIDMismatch) {
		t.Fatalf("expected ErrChainIDMismatch, got %v", err)
	}
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	admin := testAddr(0x01)
	overFee := uint32(tipping.MaxPlatformFeeBps + 1)
	cases := []struct {
		name string
		spec Spec
	}{
		{"missing chain id", Spec{Admin: admin.String()}},
		{"missing admin", Spec{ChainID: 7476}},
		{"bad admin", Spec{ChainID: 7476, Admin: "nope"}},
		{"vault equals admin", Spec{ChainID: 7476, Admin: admin.String(), Vault: admin.String()}},
		{"fee above cap", Spec{ChainID: 7476, Admin: admin.String(), PlatformFeeBps: &overFee}},
		{"threshold arity", Spec{ChainID: 7476, Admin: admin.String(), BadgeThresholds: []string{"1", "2"}}},
		{"threshold order", Spec{ChainID: 7476, Admin: admin.String(), BadgeThresholds: []string{"10", "5", "100", "1000"}}},
		{"negative alloc", Spec{ChainID: 7476, Admin: admin.String(), Alloc: map[string]string{testAddr(0x02).String(): "-1"}}},
		{"bad genesis time", Spec{ChainID: 7476, Admin: admin.String(), GenesisTime: "yesterday"}},
	}
	for _, tc := range cases {
		spec := tc.spec
		if err := spec.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	doc := []byte(`{"chainId":7476,"admin":"` + testAddr(0x01).String() + `","minimumTip":"5"}`)
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown-field rejection")
	}
}
