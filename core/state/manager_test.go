package state

import (
	"testing"

	"tipvault/storage"
)

type kvRecord struct {
	Label string
	Count uint64
}

func TestManagerOverlayCommit(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if err := mgr.KVPut([]byte("record/1"), &kvRecord{Label: "alpha", Count: 7}); err != nil {
		t.Fatalf("put: %v", err)
	}

	var loaded kvRecord
	ok, err := mgr.KVGet([]byte("record/1"), &loaded)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected overlay read to see buffered write")
	}
	if loaded.Label != "alpha" || loaded.Count != 7 {
		t.Fatalf("unexpected record: %+v", loaded)
	}
	if db.Len() != 0 {
		t.Fatalf("expected no database writes before commit, got %d", db.Len())
	}

	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if db.Len() != 1 {
		t.Fatalf("expected one committed key, got %d", db.Len())
	}
	if mgr.PendingWrites() != 0 {
		t.Fatalf("expected overlay to be cleared after commit")
	}

	fresh := NewManager(db)
	var reloaded kvRecord
	ok, err = fresh.KVGet([]byte("record/1"), &reloaded)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !ok || reloaded.Label != "alpha" {
		t.Fatalf("expected committed record to survive manager restart")
	}
}

func TestManagerResetDiscardsWrites(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if err := mgr.KVPut([]byte("record/2"), &kvRecord{Label: "beta", Count: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	mgr.Reset()

	ok, err := mgr.KVGet([]byte("record/2"), &kvRecord{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected reset to discard buffered write")
	}
	if db.Len() != 0 {
		t.Fatalf("expected no database writes after reset, got %d", db.Len())
	}
}

func TestManagerDeleteShadowsCommittedValue(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if err := mgr.KVPut([]byte("record/3"), &kvRecord{Label: "gamma"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := mgr.KVDelete([]byte("record/3")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err := mgr.KVGet([]byte("record/3"), &kvRecord{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected buffered delete to shadow committed value")
	}

	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit delete: %v", err)
	}
	ok, err = NewManager(db).KVGet([]byte("record/3"), &kvRecord{})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if ok {
		t.Fatalf("expected committed delete to remove value")
	}
}

func TestKVAppendDeduplicates(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	key := []byte("registry")
	if err := mgr.KVAppend(key, []byte{0x01}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mgr.KVAppend(key, []byte{0x01}); err != nil {
		t.Fatalf("duplicate append: %v", err)
	}
	if err := mgr.KVAppend(key, []byte{0x02}); err != nil {
		t.Fatalf("second append: %v", err)
	}

	var list [][]byte
	if err := mgr.KVGetList(key, &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
}

func TestKVGetListMissingKeyYieldsEmptySlice(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	var list [][]byte
	if err := mgr.KVGetList([]byte("missing"), &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if list == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if len(list) != 0 {
		t.Fatalf("expected empty slice, got %d entries", len(list))
	}
}
