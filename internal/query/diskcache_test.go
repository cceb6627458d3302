package query_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"selfprof/internal/query"
)

type costRecord struct {
	Name  string
	Units uint64
	Deps  []string
}

func TestDiskCacheRoundTrip(t *testing.T) {
	c, err := query.NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := query.FingerprintOf([]byte("a"))
	want := costRecord{Name: "a", Units: 42, Deps: []string{"b", "c"}}

	if c.Has("cost", key) {
		t.Fatal("empty cache reports an entry")
	}
	if err := c.Put("cost", key, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !c.Has("cost", key) {
		t.Fatal("entry missing after Put")
	}

	var got costRecord
	ok, err := c.Get("cost", key, &got)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	ok, err = c.Get("other", key, &got)
	if err != nil || ok {
		t.Fatalf("other query Get = %v, %v", ok, err)
	}
}

func TestDiskCacheNilIsEmpty(t *testing.T) {
	var c *query.DiskCache
	if err := c.Put("q", query.Fingerprint{}, 1); err != nil {
		t.Fatal(err)
	}
	var v int
	if ok, err := c.Get("q", query.Fingerprint{}, &v); ok || err != nil {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if c.Has("q", query.Fingerprint{}) {
		t.Fatal("nil cache reports an entry")
	}
}

func TestDiskCacheCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := query.NewDiskCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	key := query.FingerprintOf([]byte("x"))
	if err := c.Put("q", key, 1); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "queries", "q", key.String()+".mp")
	if err := os.WriteFile(path, []byte{0xc1}, 0o600); err != nil {
		t.Fatal(err)
	}
	var v int
	if _, err := c.Get("q", key, &v); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDiskCacheDropAll(t *testing.T) {
	c, err := query.NewDiskCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	key := query.FingerprintOf([]byte("x"))
	if err := c.Put("q", key, 1); err != nil {
		t.Fatal(err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if c.Has("q", key) {
		t.Fatal("entry survived DropAll")
	}
	if err := c.Put("q", key, 2); err != nil {
		t.Fatalf("Put after DropAll: %v", err)
	}
}

func TestCombineDependsOnOrder(t *testing.T) {
	a := query.FingerprintOf([]byte("a"))
	b := query.FingerprintOf([]byte("b"))
	root := query.FingerprintOf([]byte("root"))
	if query.Combine(root, a, b) == query.Combine(root, b, a) {
		t.Fatal("Combine ignored dependency order")
	}
	if query.Combine(root, a) != query.Combine(root, a) {
		t.Fatal("Combine is not deterministic")
	}
	if !(query.Fingerprint{}).IsZero() || a.IsZero() {
		t.Fatal("IsZero misreports")
	}
}
