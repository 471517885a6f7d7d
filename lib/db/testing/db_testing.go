package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/kvmap/lib/db"
)

// DBFactory is a function that creates a new, empty instance of a KVDB implementation.
// File based engines should place their files in t.TempDir().
type DBFactory func(t testing.TB) db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory(t))
		})

		t.Run("Metadata", func(t *testing.T) {
			testMetadata(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("ReadYourWrites", func(t *testing.T) {
			testReadYourWrites(t, factory(t))
		})

		t.Run("Rollback", func(t *testing.T) {
			testRollback(t, factory(t))
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory(t))
		})

		t.Run("Collections", func(t *testing.T) {
			testCollections(t, factory(t))
		})

		t.Run("TxnLifecycle", func(t *testing.T) {
			testTxnLifecycle(t, factory(t))
		})

		t.Run("SnapshotReads", func(t *testing.T) {
			testSnapshotReads(t, factory(t))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory(t))
		})

		t.Run("ConcurrentReaders", func(t *testing.T) {
			testConcurrentReaders(t, factory(t))
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory(t))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skipf("feature %s not supported", feature)
	}
}

// update runs fn inside a writable transaction and commits it
func update(t testing.TB, database db.KVDB, fn func(txn db.Txn)) {
	t.Helper()
	txn, err := database.Begin(true)
	if err != nil {
		t.Fatalf("Begin(true) failed: %v", err)
	}
	fn(txn)
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

// view runs fn inside a read-only transaction
func view(t testing.TB, database db.KVDB, fn func(txn db.Txn)) {
	t.Helper()
	txn, err := database.Begin(false)
	if err != nil {
		t.Fatalf("Begin(false) failed: %v", err)
	}
	defer txn.Rollback()
	fn(txn)
}

func mustPut(t testing.TB, txn db.Txn, collection, key string, entry db.Entry) {
	t.Helper()
	if err := txn.Put(collection, key, entry); err != nil {
		t.Fatalf("Put(%q, %q) failed: %v", collection, key, err)
	}
}

func mustGet(t testing.TB, txn db.Txn, collection, key string) (db.Entry, bool) {
	t.Helper()
	entry, found, err := txn.Get(collection, key)
	if err != nil {
		t.Fatalf("Get(%q, %q) failed: %v", collection, key, err)
	}
	return entry, found
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	value1 := []byte("test-value1")
	value2 := []byte("test-value2")

	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "test-key", db.Entry{Object: value1})
	})

	view(t, database, func(txn db.Txn) {
		entry, found := mustGet(t, txn, "col", "test-key")
		if !found {
			t.Fatalf("Expected key to exist after Put")
		}
		if !bytes.Equal(entry.Object, value1) {
			t.Errorf("Expected value %s, got %s", value1, entry.Object)
		}

		// returned slices must not alias stored data
		entry.Object[0] = 'X'
		again, _ := mustGet(t, txn, "col", "test-key")
		if !bytes.Equal(again.Object, value1) {
			t.Errorf("Get should return a copy, not a reference to the stored value")
		}

		if _, found := mustGet(t, txn, "col", "nonexistent-key"); found {
			t.Errorf("Expected nonexistent key to return found=false")
		}
		if _, found := mustGet(t, txn, "other", "test-key"); found {
			t.Errorf("Expected key in another collection to return found=false")
		}
	})

	// overwrite
	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "test-key", db.Entry{Object: value2})
	})
	view(t, database, func(txn db.Txn) {
		entry, found := mustGet(t, txn, "col", "test-key")
		if !found || !bytes.Equal(entry.Object, value2) {
			t.Errorf("Expected overwritten value %s, got %s (found=%v)", value2, entry.Object, found)
		}
	})

	// the caller may reuse its buffer after Put
	buf := []byte("buffer")
	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "buf", db.Entry{Object: buf})
		buf[0] = 'X'
	})
	view(t, database, func(txn db.Txn) {
		entry, _ := mustGet(t, txn, "col", "buf")
		if string(entry.Object) != "buffer" {
			t.Errorf("Put should copy the value, got %s", entry.Object)
		}
	})
}

func testMetadata(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "with-meta", db.Entry{Object: []byte("obj"), Metadata: []byte("meta")})
		mustPut(t, txn, "col", "without-meta", db.Entry{Object: []byte("obj")})
	})

	view(t, database, func(txn db.Txn) {
		entry, _ := mustGet(t, txn, "col", "with-meta")
		if string(entry.Metadata) != "meta" {
			t.Errorf("Expected metadata %q, got %q", "meta", entry.Metadata)
		}
		entry, _ = mustGet(t, txn, "col", "without-meta")
		if entry.Metadata != nil {
			t.Errorf("Expected nil metadata, got %q", entry.Metadata)
		}
	})

	// Put replaces the whole entry, metadata included
	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "with-meta", db.Entry{Object: []byte("obj2")})
	})
	view(t, database, func(txn db.Txn) {
		entry, _ := mustGet(t, txn, "col", "with-meta")
		if string(entry.Object) != "obj2" || entry.Metadata != nil {
			t.Errorf("Expected metadata to be replaced, got object=%q metadata=%q", entry.Object, entry.Metadata)
		}
	})
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete)

	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "delete-key", db.Entry{Object: []byte("v")})
	})

	update(t, database, func(txn db.Txn) {
		if err := txn.Delete("col", "delete-key"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	})

	view(t, database, func(txn db.Txn) {
		if _, found := mustGet(t, txn, "col", "delete-key"); found {
			t.Errorf("Expected key to be gone after Delete")
		}
	})

	// deleting an absent key is a no-op
	update(t, database, func(txn db.Txn) {
		if err := txn.Delete("col", "delete-key"); err != nil {
			t.Errorf("Delete of absent key failed: %v", err)
		}
		if err := txn.Delete("missing-col", "missing-key"); err != nil {
			t.Errorf("Delete in absent collection failed: %v", err)
		}
	})
}

func testReadYourWrites(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete|db.FeatureKeys)

	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "a", db.Entry{Object: []byte("a")})
		mustPut(t, txn, "col", "b", db.Entry{Object: []byte("b")})
	})

	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "c", db.Entry{Object: []byte("c")})
		if err := txn.Delete("col", "a"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		if entry, found := mustGet(t, txn, "col", "c"); !found || string(entry.Object) != "c" {
			t.Errorf("Expected pending write to be visible, got %q (found=%v)", entry.Object, found)
		}
		if _, found := mustGet(t, txn, "col", "a"); found {
			t.Errorf("Expected pending delete to be visible")
		}

		keys, err := txn.Keys("col")
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if !equalStrings(keys, []string{"b", "c"}) {
			t.Errorf("Expected keys [b c], got %v", keys)
		}

		// put after delete in the same transaction
		mustPut(t, txn, "col", "a", db.Entry{Object: []byte("a2")})
		if entry, found := mustGet(t, txn, "col", "a"); !found || string(entry.Object) != "a2" {
			t.Errorf("Expected re-put value a2, got %q (found=%v)", entry.Object, found)
		}
	})

	view(t, database, func(txn db.Txn) {
		keys, _ := txn.Keys("col")
		if !equalStrings(keys, []string{"a", "b", "c"}) {
			t.Errorf("Expected committed keys [a b c], got %v", keys)
		}
	})
}

func testRollback(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "kept", db.Entry{Object: []byte("v1")})
	})

	txn, err := database.Begin(true)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	mustPut(t, txn, "col", "kept", db.Entry{Object: []byte("v2")})
	mustPut(t, txn, "col", "discarded", db.Entry{Object: []byte("x")})
	if err := txn.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	view(t, database, func(txn db.Txn) {
		entry, _ := mustGet(t, txn, "col", "kept")
		if string(entry.Object) != "v1" {
			t.Errorf("Expected rollback to keep v1, got %q", entry.Object)
		}
		if _, found := mustGet(t, txn, "col", "discarded"); found {
			t.Errorf("Expected rolled back write to be discarded")
		}
	})
}

func testKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureKeys)

	update(t, database, func(txn db.Txn) {
		for _, key := range []string{"delta", "alpha", "charlie", "bravo"} {
			mustPut(t, txn, "letters", key, db.Entry{Object: []byte(key)})
		}
		// a collection whose name is a prefix of another must stay separate
		mustPut(t, txn, "letter", "zulu", db.Entry{Object: []byte("zulu")})
		mustPut(t, txn, "letters2", "echo", db.Entry{Object: []byte("echo")})
	})

	view(t, database, func(txn db.Txn) {
		keys, err := txn.Keys("letters")
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		expected := []string{"alpha", "bravo", "charlie", "delta"}
		if !equalStrings(keys, expected) {
			t.Errorf("Expected keys %v, got %v", expected, keys)
		}

		keys, _ = txn.Keys("letter")
		if !equalStrings(keys, []string{"zulu"}) {
			t.Errorf("Expected keys [zulu], got %v", keys)
		}

		keys, _ = txn.Keys("empty")
		if len(keys) != 0 {
			t.Errorf("Expected no keys for an absent collection, got %v", keys)
		}
	})
}

func testCollections(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureDelete|db.FeatureCollections)

	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "users", "1", db.Entry{Object: []byte("u")})
		mustPut(t, txn, "orders", "1", db.Entry{Object: []byte("o")})
		mustPut(t, txn, "audit", "1", db.Entry{Object: []byte("a")})
	})

	view(t, database, func(txn db.Txn) {
		names, err := txn.Collections()
		if err != nil {
			t.Fatalf("Collections failed: %v", err)
		}
		if !equalStrings(names, []string{"audit", "orders", "users"}) {
			t.Errorf("Expected [audit orders users], got %v", names)
		}
	})

	// a collection without keys disappears
	update(t, database, func(txn db.Txn) {
		if err := txn.Delete("audit", "1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		names, _ := txn.Collections()
		if !equalStrings(names, []string{"orders", "users"}) {
			t.Errorf("Expected pending view [orders users], got %v", names)
		}
	})

	view(t, database, func(txn db.Txn) {
		names, _ := txn.Collections()
		if !equalStrings(names, []string{"orders", "users"}) {
			t.Errorf("Expected [orders users], got %v", names)
		}
	})
}

func testTxnLifecycle(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	readTxn, err := database.Begin(false)
	if err != nil {
		t.Fatalf("Begin(false) failed: %v", err)
	}
	if readTxn.Writable() {
		t.Errorf("Expected read-only transaction")
	}
	if err := readTxn.Put("col", "key", db.Entry{Object: []byte("v")}); !errors.Is(err, db.ErrTxnReadOnly) {
		t.Errorf("Expected ErrTxnReadOnly for Put, got %v", err)
	}
	if err := readTxn.Delete("col", "key"); !errors.Is(err, db.ErrTxnReadOnly) {
		t.Errorf("Expected ErrTxnReadOnly for Delete, got %v", err)
	}
	if err := readTxn.Rollback(); err != nil {
		t.Errorf("Rollback failed: %v", err)
	}

	writeTxn, err := database.Begin(true)
	if err != nil {
		t.Fatalf("Begin(true) failed: %v", err)
	}
	if !writeTxn.Writable() {
		t.Errorf("Expected writable transaction")
	}
	mustPut(t, writeTxn, "col", "key", db.Entry{Object: []byte("v")})
	if err := writeTxn.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// all calls on a closed transaction fail, except Rollback
	if _, _, err := writeTxn.Get("col", "key"); !errors.Is(err, db.ErrTxnClosed) {
		t.Errorf("Expected ErrTxnClosed for Get, got %v", err)
	}
	if err := writeTxn.Put("col", "key", db.Entry{}); !errors.Is(err, db.ErrTxnClosed) {
		t.Errorf("Expected ErrTxnClosed for Put, got %v", err)
	}
	if _, err := writeTxn.Keys("col"); !errors.Is(err, db.ErrTxnClosed) {
		t.Errorf("Expected ErrTxnClosed for Keys, got %v", err)
	}
	if err := writeTxn.Commit(); !errors.Is(err, db.ErrTxnClosed) {
		t.Errorf("Expected ErrTxnClosed for second Commit, got %v", err)
	}
	if err := writeTxn.Rollback(); err != nil {
		t.Errorf("Expected Rollback after Commit to be a no-op, got %v", err)
	}
}

func testSnapshotReads(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureSnapshotReads)

	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "key", db.Entry{Object: []byte("before")})
	})

	reader, err := database.Begin(false)
	if err != nil {
		t.Fatalf("Begin(false) failed: %v", err)
	}
	defer reader.Rollback()

	// establish the snapshot before the writer commits
	if entry, _ := mustGet(t, reader, "col", "key"); string(entry.Object) != "before" {
		t.Fatalf("Expected before, got %q", entry.Object)
	}

	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "key", db.Entry{Object: []byte("after")})
	})

	if entry, _ := mustGet(t, reader, "col", "key"); string(entry.Object) != "before" {
		t.Errorf("Expected snapshot to still read before, got %q", entry.Object)
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureKeys)

	largeValue := bytes.Repeat([]byte("x"), 1<<20)

	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "empty-value", db.Entry{Object: []byte{}})
		mustPut(t, txn, "col", "large-value", db.Entry{Object: largeValue})
		mustPut(t, txn, "col", "üñíçødé-ключ", db.Entry{Object: []byte("unicode")})
		mustPut(t, txn, "col", "binary\x01\xff", db.Entry{Object: []byte{0, 1, 2, 0}})
		mustPut(t, txn, "", "default-collection", db.Entry{Object: []byte("d")})
		mustPut(t, txn, "col", "empty-meta", db.Entry{Object: []byte("o"), Metadata: []byte{}})
	})

	view(t, database, func(txn db.Txn) {
		entry, found := mustGet(t, txn, "col", "empty-value")
		if !found || len(entry.Object) != 0 {
			t.Errorf("Expected empty value to be found and empty, got %q (found=%v)", entry.Object, found)
		}

		entry, _ = mustGet(t, txn, "col", "large-value")
		if !bytes.Equal(entry.Object, largeValue) {
			t.Errorf("Large value mismatch, got %d bytes", len(entry.Object))
		}

		entry, _ = mustGet(t, txn, "col", "üñíçødé-ключ")
		if string(entry.Object) != "unicode" {
			t.Errorf("Unicode key mismatch, got %q", entry.Object)
		}

		entry, _ = mustGet(t, txn, "col", "binary\x01\xff")
		if !bytes.Equal(entry.Object, []byte{0, 1, 2, 0}) {
			t.Errorf("Binary value mismatch, got %v", entry.Object)
		}

		entry, found = mustGet(t, txn, "", "default-collection")
		if !found || string(entry.Object) != "d" {
			t.Errorf("Empty collection name mismatch, got %q (found=%v)", entry.Object, found)
		}

		entry, _ = mustGet(t, txn, "col", "empty-meta")
		if entry.Metadata == nil {
			t.Errorf("Expected empty metadata to stay non-nil")
		}

		keys, _ := txn.Keys("")
		if !equalStrings(keys, []string{"default-collection"}) {
			t.Errorf("Expected [default-collection] in empty collection, got %v", keys)
		}
	})
}

func testConcurrentReaders(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	const numKeys = 100
	update(t, database, func(txn db.Txn) {
		for i := 0; i < numKeys; i++ {
			mustPut(t, txn, "col", fmt.Sprintf("key-%03d", i), db.Entry{Object: []byte(fmt.Sprintf("v%d", i))})
		}
	})

	var wg sync.WaitGroup
	errs := make(chan error, 16)

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < numKeys; i++ {
				txn, err := database.Begin(false)
				if err != nil {
					errs <- err
					return
				}
				_, found, err := txn.Get("col", fmt.Sprintf("key-%03d", i))
				_ = txn.Rollback()
				if err != nil {
					errs <- err
					return
				}
				if !found {
					errs <- fmt.Errorf("key-%03d not found", i)
					return
				}
			}
		}()
	}

	// a single writer runs alongside the readers
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			txn, err := database.Begin(true)
			if err != nil {
				errs <- err
				return
			}
			if err := txn.Put("other", fmt.Sprintf("w-%d", i), db.Entry{Object: []byte("w")}); err != nil {
				_ = txn.Rollback()
				errs <- err
				return
			}
			if err := txn.Commit(); err != nil {
				errs <- err
				return
			}
		}
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent access failed: %v", err)
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete|db.FeatureKeys)

	// users with profile metadata, sessions that get removed again
	update(t, database, func(txn db.Txn) {
		for i := 0; i < 50; i++ {
			id := fmt.Sprintf("user-%02d", i)
			mustPut(t, txn, "users", id, db.Entry{
				Object:   []byte(fmt.Sprintf(`{"id":%q}`, id)),
				Metadata: []byte(fmt.Sprintf(`{"visits":%d}`, i)),
			})
			mustPut(t, txn, "sessions", id, db.Entry{Object: []byte("token")})
		}
	})

	update(t, database, func(txn db.Txn) {
		for i := 0; i < 50; i += 2 {
			if err := txn.Delete("sessions", fmt.Sprintf("user-%02d", i)); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
		}
	})

	view(t, database, func(txn db.Txn) {
		users, _ := txn.Keys("users")
		if len(users) != 50 {
			t.Errorf("Expected 50 users, got %d", len(users))
		}
		sessions, _ := txn.Keys("sessions")
		if len(sessions) != 25 {
			t.Errorf("Expected 25 sessions, got %d", len(sessions))
		}
		entry, _ := mustGet(t, txn, "users", "user-07")
		if string(entry.Metadata) != `{"visits":7}` {
			t.Errorf("Unexpected metadata %q", entry.Metadata)
		}
	})
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	update(t, database, func(txn db.Txn) {
		mustPut(t, txn, "col", "key", db.Entry{Object: []byte("value")})
	})

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected DbType to be set")
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("GetInfo lists %s but SupportsFeature denies it", f)
		}
	}
}
