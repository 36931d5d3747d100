package leveldbkv

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/barryWhiteHat/Grapevine/storage/kv"
)

func openTestDB(t *testing.T) kv.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutGetRoundtrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.Put([]byte("key"), []byte("value")); err != nil {
		t.Fatal(err)
	}
	v, err := db.Get([]byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(v, []byte("value")) {
		t.Fatalf("got %q", v)
	}
	if _, err := db.Get([]byte("missing")); !errors.Is(err, db.ErrNotFound()) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBatchWriteAndIterate(t *testing.T) {
	db := openTestDB(t)
	b := db.NewBatch()
	b.Put([]byte("x/1"), []byte("a"))
	b.Put([]byte("x/2"), []byte("b"))
	b.Put([]byte("y/1"), []byte("c"))
	if err := db.Write(b); err != nil {
		t.Fatal(err)
	}

	it := db.NewIterator(kv.BytesPrefix([]byte("x/")))
	defer it.Release()
	n := 0
	for it.Next() {
		n++
	}
	if err := it.Error(); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 keys under x/, got %d", n)
	}
}
