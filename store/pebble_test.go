package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	s, err := OpenPebbleStore(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestListAppendAndRangePreservesOrder(t *testing.T) {
	s := openTestStore(t)
	key := "venuecore:Orders:trader-1"

	for i, v := range [][]byte{[]byte("first"), []byte("second"), []byte("third")} {
		length, err := s.ListAppend(key, v)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if length != i+1 {
			t.Fatalf("append %d: expected length %d, got %d", i, i+1, length)
		}
	}

	got, err := s.ListRange(key)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d", len(got), len(want))
	}
	for i, w := range want {
		if string(got[i]) != w {
			t.Fatalf("item %d: got %q, want %q", i, got[i], w)
		}
	}
}

func TestListRangeOfMissingKeyIsEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.ListRange("venuecore:Orders:nobody")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty range, got %v", got)
	}
}

func TestHashSetAndGetAll(t *testing.T) {
	s := openTestStore(t)
	key := "venuecore:Strategies:trader-1:State"
	if err := s.HashSet(key, "cursor", []byte("42")); err != nil {
		t.Fatalf("hash set: %v", err)
	}
	if err := s.HashSet(key, "mode", []byte("live")); err != nil {
		t.Fatalf("hash set: %v", err)
	}

	got, err := s.HashGetAll(key)
	if err != nil {
		t.Fatalf("hash get all: %v", err)
	}
	if string(got["cursor"]) != "42" || string(got["mode"]) != "live" {
		t.Fatalf("unexpected hash contents: %v", got)
	}
}

func TestKeyScanPrefixCoversListsAndHashes(t *testing.T) {
	s := openTestStore(t)
	_, _ = s.ListAppend("venuecore:Orders:trader-1", []byte("x"))
	_, _ = s.ListAppend("venuecore:Positions:trader-1", []byte("y"))
	_ = s.HashSet("venuecore:Strategies:trader-1:State", "k", []byte("v"))
	_, _ = s.ListAppend("venuecore:Orders:trader-2", []byte("z"))

	keys, err := s.KeyScanPrefix("venuecore:Orders:")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := map[string]bool{"venuecore:Orders:trader-1": true, "venuecore:Orders:trader-2": true}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want keys matching %v", keys, want)
	}
	for _, k := range keys {
		if !want[k] {
			t.Fatalf("unexpected key %q", k)
		}
	}
}

func TestDeleteRemovesListAndHash(t *testing.T) {
	s := openTestStore(t)
	key := "venuecore:Orders:trader-1"
	_, _ = s.ListAppend(key, []byte("x"))
	if err := s.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.ListRange(key)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty range after delete, got %v", got)
	}
}

func TestFlushDBClearsEverything(t *testing.T) {
	s := openTestStore(t)
	_, _ = s.ListAppend("a", []byte("1"))
	_ = s.HashSet("b", "f", []byte("2"))
	if err := s.FlushDB(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	keys, err := s.KeyScanPrefix("")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected empty db after flush, got %v", keys)
	}
}
