package idempotency

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "idem.db"), ttl)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTripsRecords(t *testing.T) {
	store := openTestStore(t, time.Hour)
	now := time.Now()

	record := Record{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte(`{"result":{"hash":"0xabc"}}`),
	}
	if err := store.Put("supporter-7|key-1", record, now); err != nil {
		t.Fatalf("put record: %v", err)
	}

	got, ok, err := store.Get("supporter-7|key-1", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !ok {
		t.Fatalf("expected cached record")
	}
	if got.StatusCode != 200 {
		t.Fatalf("unexpected status %d", got.StatusCode)
	}
	if !bytes.Equal(got.Body, record.Body) {
		t.Fatalf("unexpected body %s", got.Body)
	}
	if got.ExpiresAt.Sub(got.StoredAt) != time.Hour {
		t.Fatalf("unexpected expiry window: stored=%v expires=%v", got.StoredAt, got.ExpiresAt)
	}
}

func TestStoreMissesUnknownKey(t *testing.T) {
	store := openTestStore(t, time.Hour)
	if _, ok, err := store.Get("nope", time.Now()); err != nil || ok {
		t.Fatalf("expected miss, ok=%t err=%v", ok, err)
	}
}

func TestStoreExpiresRecords(t *testing.T) {
	store := openTestStore(t, time.Minute)
	now := time.Now()
	if err := store.Put("k", Record{StatusCode: 200, Body: []byte("x")}, now); err != nil {
		t.Fatalf("put record: %v", err)
	}

	if _, ok, err := store.Get("k", now.Add(2*time.Minute)); err != nil || ok {
		t.Fatalf("expected expired record to miss, ok=%t err=%v", ok, err)
	}
	// The expired entry is dropped, so an earlier clock no longer finds it.
	if _, ok, err := store.Get("k", now); err != nil || ok {
		t.Fatalf("expected lazy delete, ok=%t err=%v", ok, err)
	}
}

func TestSweepDropsExpiredRecords(t *testing.T) {
	store := openTestStore(t, time.Minute)
	now := time.Now()
	if err := store.Put("old", Record{StatusCode: 200, Body: []byte("a")}, now.Add(-time.Hour)); err != nil {
		t.Fatalf("put old record: %v", err)
	}
	if err := store.Put("fresh", Record{StatusCode: 200, Body: []byte("b")}, now); err != nil {
		t.Fatalf("put fresh record: %v", err)
	}

	if err := store.Sweep(now); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, ok, _ := store.Get("old", now); ok {
		t.Fatalf("expected swept record to be gone")
	}
	if _, ok, _ := store.Get("fresh", now); !ok {
		t.Fatalf("expected fresh record to survive sweep")
	}
}

func TestOpenRejectsBadSettings(t *testing.T) {
	if _, err := Open("", time.Hour); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := Open(filepath.Join(t.TempDir(), "idem.db"), 0); err == nil {
		t.Fatalf("expected error for non-positive TTL")
	}
}
