package persist

import (
	"bytes"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/kvmap/lib/dispatch"
	"github.com/ValentinKolb/kvmap/lib/operation"
	"github.com/ValentinKolb/kvmap/lib/store"
)

// storedEntry returns the raw payloads stored at addr
func storedEntry(t *testing.T, conn *store.Connection, addr Address) (object, metadata []byte) {
	t.Helper()
	err := conn.Read(func(txn store.ReadTransaction) error {
		var err error
		object, metadata, _, err = txn.Get(addr)
		return err
	})
	if err != nil {
		t.Fatalf("Get %s failed: %v", addr, err)
	}
	return object, metadata
}

func TestIdiomEquivalence(t *testing.T) {
	m := ObjectsWithValueMetadata[Note, Stamp](stampArchiver)
	note := Note{ID: "same", Text: "everywhere", stamp: Stamp{Unix: 42}}

	idioms := map[string]func(repo *Repository[Note]) (Note, error){
		"sync": func(repo *Repository[Note]) (Note, error) {
			return repo.Write(note)
		},
		"async": func(repo *Repository[Note]) (Note, error) {
			type result struct {
				v   Note
				err error
			}
			ch := make(chan result, 1)
			repo.AsyncWrite(note, func(v Note, err error) { ch <- result{v, err} })
			r := <-ch
			return r.v, r.err
		},
		"future": func(repo *Repository[Note]) (Note, error) {
			return repo.FutureWrite(note).Receive()
		},
		"operation": func(repo *Repository[Note]) (Note, error) {
			task := repo.WriteOperation(note)
			task.Start()
			return task.Result()
		},
	}

	var wantObject, wantMetadata []byte
	for _, name := range []string{"sync", "async", "future", "operation"} {
		conn := newTestConnection(t)
		repo := New(conn, m)

		got, err := idioms[name](repo)
		if err != nil {
			t.Fatalf("%s: write failed: %v", name, err)
		}
		if got != note {
			t.Errorf("%s: returned %+v, want %+v", name, got, note)
		}

		object, metadata := storedEntry(t, conn, m.AddressOf(note))
		if wantObject == nil {
			wantObject, wantMetadata = object, metadata
			continue
		}
		if !bytes.Equal(object, wantObject) || !bytes.Equal(metadata, wantMetadata) {
			t.Errorf("%s: stored state differs from sync: %q/%q vs %q/%q", name, object, metadata, wantObject, wantMetadata)
		}
	}
}

func TestReadIdioms(t *testing.T) {
	repo := New(newTestConnection(t), Objects[Item]())
	if _, err := repo.WriteAll([]Item{{ID: "a", Payload: "1"}, {ID: "b", Payload: "2"}}); err != nil {
		t.Fatal(err)
	}

	lookup, err := repo.FutureRead("a").Receive()
	if err != nil || !lookup.Found || lookup.Value.Payload != "1" {
		t.Errorf("FutureRead = %+v, %v", lookup, err)
	}

	task := repo.ReadOperation("missing")
	task.Start()
	if lookup, err := task.Result(); err != nil || lookup.Found {
		t.Errorf("ReadOperation(missing) = %+v, %v", lookup, err)
	}

	done := make(chan []Item, 1)
	repo.AsyncReadAll([]string{"b", "a"}, func(items []Item, err error) {
		if err != nil {
			items = nil
		}
		done <- items
	})
	if items := <-done; len(items) != 2 || items[0].ID != "b" || items[1].ID != "a" {
		t.Errorf("AsyncReadAll must keep key order, got %+v", items)
	}

	all, err := repo.FutureReadAll([]string{"a", "x", "b"}).Receive()
	if err != nil || len(all) != 2 {
		t.Errorf("FutureReadAll = %+v, %v", all, err)
	}
}

func TestRemoveIdioms(t *testing.T) {
	repo := New(newTestConnection(t), Objects[Item]())
	items := []Item{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	if _, err := repo.FutureWriteAll(items).Receive(); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.FutureRemove(items[0]).Receive(); err != nil {
		t.Errorf("FutureRemove failed: %v", err)
	}
	task := repo.RemoveOperation(items[1])
	task.Start()
	if err := task.Err(); err != nil {
		t.Errorf("RemoveOperation failed: %v", err)
	}
	done := make(chan error, 1)
	repo.AsyncRemoveAll(items[2:], func(err error) { done <- err })
	if err := <-done; err != nil {
		t.Errorf("AsyncRemoveAll failed: %v", err)
	}

	keys, err := repo.Keys()
	if err != nil || len(keys) != 0 {
		t.Errorf("Keys after removing everything = %v, %v", keys, err)
	}
}

func TestOperationCancelledBeforeStart(t *testing.T) {
	repo := New(newTestConnection(t), Objects[Item]())

	task := repo.WriteOperation(Item{ID: "never", Payload: "written"})
	task.Cancel()
	task.Start()

	if _, err := task.Result(); !errors.Is(err, store.ErrCancelled) {
		t.Fatalf("expected a cancelled error, got %v", err)
	}
	if task.State() != operation.StateFinished {
		t.Errorf("state = %s", task.State())
	}
	if _, found, _ := repo.Read("never"); found {
		t.Errorf("cancelled operation must not write")
	}
}

func TestOperationCancelledWhileQueued(t *testing.T) {
	conn := newTestConnection(t)
	repo := New(conn, Objects[Item]())

	// hold the connection so the operation waits behind it
	gate := make(chan struct{})
	held := make(chan struct{})
	conn.AsyncRead(func(store.ReadTransaction) error {
		close(held)
		<-gate
		return nil
	}, dispatch.Immediate, nil)
	<-held

	task := repo.WriteOperation(Item{ID: "queued", Payload: "v"})
	task.Start()
	task.Cancel()
	close(gate)

	if _, err := task.Result(); !errors.Is(err, store.ErrCancelled) {
		t.Fatalf("expected a cancelled error, got %v", err)
	}
	if _, found, _ := repo.Read("queued"); found {
		t.Errorf("operation cancelled before its transaction must not write")
	}
}

func TestOperationQueue(t *testing.T) {
	repo := NewForDatabase(newTestDatabase(t, nil), Objects[Item]())
	q := operation.NewQueue("persist-test", 3)

	tasks := make([]*operation.Task[Item], 10)
	for i := range tasks {
		tasks[i] = repo.WriteOperation(Item{ID: strconv.Itoa(i), Payload: "p"})
		if err := q.Add(tasks[i]); err != nil {
			t.Fatal(err)
		}
	}
	q.Wait()

	for i, task := range tasks {
		if err := task.Err(); err != nil {
			t.Errorf("task %d failed: %v", i, err)
		}
	}
	if keys, _ := repo.Keys(); len(keys) != len(tasks) {
		t.Errorf("expected %d keys, got %v", len(tasks), keys)
	}
}

func TestAsyncWritesAreFIFO(t *testing.T) {
	repo := New(newTestConnection(t), Objects[Item]())

	const n = 50
	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		repo.AsyncWrite(Item{ID: "k", Payload: strconv.Itoa(i)}, func(v Item, err error) {
			defer wg.Done()
			if err != nil {
				return
			}
			idx, _ := strconv.Atoi(v.Payload)
			mu.Lock()
			order = append(order, idx)
			mu.Unlock()
		})
	}
	wg.Wait()

	if len(order) != n {
		t.Fatalf("expected %d completions, got %d", n, len(order))
	}
	for i, idx := range order {
		if idx != i {
			t.Fatalf("completion %d delivered for write %d", i, idx)
		}
	}
	if got, _, _ := repo.Read("k"); got.Payload != strconv.Itoa(n-1) {
		t.Errorf("last write must win, got %q", got.Payload)
	}
}

func TestCompletionQueue(t *testing.T) {
	var calls atomic.Int32
	counting := dispatch.QueueFunc(func(fn func()) {
		calls.Add(1)
		fn()
	})

	base := New(newTestConnection(t), Objects[Item]())
	repo := base.On(counting)

	done := make(chan error, 1)
	repo.AsyncWrite(Item{ID: "q"}, func(_ Item, err error) { done <- err })
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("completion never delivered")
	}
	if calls.Load() != 1 {
		t.Errorf("completion must run on the configured queue, got %d calls", calls.Load())
	}

	// the original keeps its queue
	base.AsyncWrite(Item{ID: "q"}, func(_ Item, err error) { done <- err })
	<-done
	if calls.Load() != 1 {
		t.Errorf("On must not modify the original repository")
	}

	withOption := New(newTestConnection(t), Objects[Item](), WithQueue(counting))
	withOption.AsyncRemove(Item{ID: "q"}, func(err error) { done <- err })
	<-done
	if calls.Load() != 2 {
		t.Errorf("WithQueue not applied, got %d calls", calls.Load())
	}
}

func TestDatabaseRepository(t *testing.T) {
	d := newTestDatabase(t, nil)
	repo := NewForDatabase(d, Objects[Item]())

	if _, err := repo.Write(Item{ID: "x", Payload: "1"}); err != nil {
		t.Fatal(err)
	}
	got, err := repo.FutureRead("x").Receive()
	if err != nil || got.Value.Payload != "1" {
		t.Errorf("FutureRead = %+v, %v", got, err)
	}

	// a repository bound to a connection sees the same data
	other := New(d.NewConnection(), Objects[Item]())
	if v, found, err := other.Read("x"); err != nil || !found || v.Payload != "1" {
		t.Errorf("Read through another connection = %+v, %v, %v", v, found, err)
	}

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Write(Item{ID: "y"}); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected a closed error after Close, got %v", err)
	}
}
