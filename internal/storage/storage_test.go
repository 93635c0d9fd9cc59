package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/command-center/client-core/internal/storage"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "data", "client.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, ok, err := store.Get(storage.KeySession); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}

	record := `{"serverUrl":"https://cc.local:6280","token":"t1"}`
	if err := store.Put(storage.KeySession, record); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	value, ok, err := store.Get(storage.KeySession)
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if value != record {
		t.Errorf("expected %q, got %q", record, value)
	}
}

func TestSQLiteStore_PutOverwrites(t *testing.T) {
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Put(storage.KeyLastServerURL, "https://one.example"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Put(storage.KeyLastServerURL, "https://two.example"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	value, ok, err := store.Get(storage.KeyLastServerURL)
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if value != "https://two.example" {
		t.Errorf("expected overwritten value, got %q", value)
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Put(storage.KeySession, "record"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Delete(storage.KeySession); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := store.Get(storage.KeySession); ok {
		t.Error("record survived delete")
	}

	// Deleting an absent key is a no-op.
	if err := store.Delete("missing"); err != nil {
		t.Errorf("delete of absent key failed: %v", err)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")

	store, err := storage.NewSQLite(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.Put(storage.KeySession, "durable"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := storage.NewSQLite(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	value, ok, err := reopened.Get(storage.KeySession)
	if err != nil || !ok {
		t.Fatalf("get after reopen failed: ok=%v err=%v", ok, err)
	}
	if value != "durable" {
		t.Errorf("expected persisted value, got %q", value)
	}
}

func TestMemoryStore(t *testing.T) {
	store := storage.NewMemory()

	if err := store.Put("k", "v"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	value, ok, err := store.Get("k")
	if err != nil || !ok || value != "v" {
		t.Fatalf("get failed: value=%q ok=%v err=%v", value, ok, err)
	}
	if err := store.Delete("k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := store.Get("k"); ok {
		t.Error("record survived delete")
	}
}
