package types

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(gethcrypto.S256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestSignAndRecover(t *testing.T) {
	key := testKey(t)
	tx := &Transaction{
		Type:    TxTypeTip,
		ChainID: ChainID(),
		Nonce:   3,
		To:      bytes.Repeat([]byte{0x11}, 20),
		Value:   big.NewInt(2_000_000),
	}
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	from, err := tx.From()
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	want := gethcrypto.PubkeyToAddress(key.PublicKey).Bytes()
	if !bytes.Equal(from, want) {
		t.Fatalf("recovered %x, want %x", from, want)
	}
}

func TestFromRejectsUnsigned(t *testing.T) {
	tx := &Transaction{Type: TxTypeTransfer, ChainID: ChainID(), Value: big.NewInt(1)}
	if _, err := tx.From(); err == nil {
		t.Fatal("expected error for unsigned transaction")
	}
}

func TestHashCoversDirectiveFields(t *testing.T) {
	base := Transaction{
		Type:    TxTypeTransfer,
		ChainID: ChainID(),
		Nonce:   1,
		To:      bytes.Repeat([]byte{0x22}, 20),
		Value:   big.NewInt(500),
	}
	h1, err := base.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	closed := base
	closed.CloseTo = bytes.Repeat([]byte{0x33}, 20)
	h2, err := closed.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if bytes.Equal(h1, h2) {
		t.Fatal("CloseTo not covered by signing hash")
	}
	rekeyed := base
	rekeyed.RekeyTo = bytes.Repeat([]byte{0x44}, 20)
	h3, err := rekeyed.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if bytes.Equal(h1, h3) {
		t.Fatal("RekeyTo not covered by signing hash")
	}
}

func TestTamperedTransactionRecoversDifferentSigner(t *testing.T) {
	key := testKey(t)
	tx := &Transaction{
		Type:    TxTypeTransfer,
		ChainID: ChainID(),
		Nonce:   9,
		To:      bytes.Repeat([]byte{0x55}, 20),
		Value:   big.NewInt(100),
	}
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	want := gethcrypto.PubkeyToAddress(key.PublicKey).Bytes()

	tampered := *tx
	tampered.Value = big.NewInt(1_000_000)
	tampered.from = nil
	got, err := tampered.From()
	if err == nil && bytes.Equal(got, want) {
		t.Fatal("tampered transaction still recovered the original signer")
	}
}

func TestDecodePayloadRejectsUnknownFields(t *testing.T) {
	var p ProfilePayload
	err := DecodePayload([]byte(`{"name":"a","bogus":true}`), &p)
	if err == nil {
		t.Fatal("expected unknown-field rejection")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  bool
	}{
		{"100000", 100000, false},
		{" 42 ", 42, false},
		{"", 0, true},
		{"-5", 0, true},
		{"1.5", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.err {
			if err == nil {
				t.Fatalf("ParseAmount(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tc.in, err)
		}
		if got.Int64() != tc.want {
			t.Fatalf("ParseAmount(%q) = %s, want %d", tc.in, got, tc.want)
		}
	}
}
