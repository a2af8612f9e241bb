package diskcache

import (
	"os"
	"testing"
)

func TestStorePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	entry := &CacheEntry{
		Data:         []byte("hello world"),
		ETag:         `"v1"`,
		ServerDate:   1000,
		LastModified: 900,
		TTL:          2000,
		SoftTTL:      1500,
		ResponseHeaders: map[string]string{
			"Content-Type": "text/plain",
		},
	}
	if err := store.Put("key-a", entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := store.Get("key-a")
	if !ok {
		t.Fatal("Get: miss after Put")
	}
	if string(got.Data) != "hello world" {
		t.Errorf("Data = %q", got.Data)
	}
	if got.ETag != entry.ETag || got.TTL != entry.TTL || got.SoftTTL != entry.SoftTTL {
		t.Errorf("metadata mismatch: got %+v", got)
	}
	if got.ResponseHeaders["Content-Type"] != "text/plain" {
		t.Errorf("ResponseHeaders not round-tripped: %+v", got.ResponseHeaders)
	}
}

func TestStoreGetMissOnUnknownKey(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := store.Get("nope"); ok {
		t.Fatal("Get on unknown key returned ok=true")
	}
}

func TestStoreRemove(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Put("key-a", &CacheEntry{Data: []byte("x")})
	if err := store.Remove("key-a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := store.Get("key-a"); ok {
		t.Fatal("Get after Remove still returns a hit")
	}
}

func TestStoreCorruptFileIsTreatedAsMiss(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Put("key-a", &CacheEntry{Data: []byte("x")})

	// Corrupt the on-disk file directly by truncating its magic number.
	filename := filenameForKey("key-a")
	if err := os.WriteFile(dir+"/"+filename, []byte{0, 0, 0, 0}, 0o644); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}

	if _, ok := store.Get("key-a"); ok {
		t.Fatal("Get on corrupted file returned ok=true")
	}
	if store.Len() != 0 {
		t.Fatalf("corrupted entry not pruned from index, Len() = %d", store.Len())
	}
}

func TestStorePruningEvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	// Small budget: each entry is 107 bytes on disk (a 57-byte header for a
	// one-byte key plus a 50-byte body), so two entries fit and every Put
	// after the second one forces a prune.
	store, err := Open(dir, WithMaxBytes(300))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	put := func(key string) {
		if err := store.Put(key, &CacheEntry{Data: make([]byte, 50)}); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}

	put("a")
	put("b")
	// Touch "a" so it's more recently used than "b".
	store.Get("a")
	put("c")
	put("d")
	put("e")

	if _, ok := store.Get("b"); ok {
		t.Error("least-recently-used entry \"b\" was not pruned")
	}
	if store.TotalBytes() >= 300 {
		t.Errorf("TotalBytes() = %d, want under budget 300", store.TotalBytes())
	}
}

func TestStoreReopenRebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Put("key-a", &CacheEntry{Data: []byte("persisted")})

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Get("key-a")
	if !ok {
		t.Fatal("entry missing after reopen")
	}
	if string(got.Data) != "persisted" {
		t.Errorf("Data after reopen = %q", got.Data)
	}
}

func TestStoreClear(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Put("a", &CacheEntry{Data: []byte("x")})
	_ = store.Put("b", &CacheEntry{Data: []byte("y")})

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", store.Len())
	}
	if _, ok := store.Get("a"); ok {
		t.Fatal("entry survived Clear")
	}
}

func TestCacheEntryExpiry(t *testing.T) {
	e := &CacheEntry{TTL: 1000, SoftTTL: 500}
	if !e.RefreshNeeded(600) {
		t.Error("RefreshNeeded(600) = false, want true (past SoftTTL)")
	}
	if e.IsExpired(600) {
		t.Error("IsExpired(600) = true, want false (before TTL)")
	}
	if !e.IsExpired(1500) {
		t.Error("IsExpired(1500) = false, want true (past TTL)")
	}
}
