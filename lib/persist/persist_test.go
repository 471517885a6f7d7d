package persist

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/ValentinKolb/kvmap/lib/db/engines/maple"
	"github.com/ValentinKolb/kvmap/lib/store"
	"github.com/ValentinKolb/kvmap/lib/store/codec"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// --------------------------------------------------------------------------
// Test Types
// --------------------------------------------------------------------------

// Item is an object without metadata
type Item struct {
	ID      string
	Payload string
}

func (i Item) Identifier() string { return i.ID }

// Author is object-style metadata
type Author struct {
	Name     string
	Revision int
}

// Doc is an object with object metadata
type Doc struct {
	ID     string
	Body   string
	author Author
}

func (d Doc) Identifier() string     { return d.ID }
func (d Doc) Metadata() Author       { return d.author }
func (d *Doc) SetMetadata(a Author)  { d.author = a }
func (d Doc) CollectionName() string { return "documents" }

// Stamp is value-style metadata
type Stamp struct {
	Unix int64
}

var stampArchiver = ArchiverFuncs[Stamp]{
	ArchiveFunc: func(s Stamp) ([]byte, error) {
		return []byte(strconv.FormatInt(s.Unix, 10)), nil
	},
	UnarchiveFunc: func(data []byte) (Stamp, error) {
		n, err := strconv.ParseInt(string(data), 10, 64)
		return Stamp{Unix: n}, err
	},
}

// Note is an object with value metadata
type Note struct {
	ID    string
	Text  string
	stamp Stamp
}

func (n Note) Identifier() string   { return n.ID }
func (n Note) Metadata() Stamp      { return n.stamp }
func (n *Note) SetMetadata(s Stamp) { n.stamp = s }

// Point archives itself
type Point struct {
	Name string
	X, Y int
}

func (p Point) Identifier() string { return p.Name }

func (p Point) Archive() ([]byte, error) {
	return []byte(fmt.Sprintf("%s,%d,%d", p.Name, p.X, p.Y)), nil
}

func (p *Point) Unarchive(data []byte) error {
	parts := strings.Split(string(data), ",")
	if len(parts) != 3 {
		return fmt.Errorf("malformed point %q", data)
	}
	x, err := strconv.Atoi(parts[1])
	if err != nil {
		return err
	}
	y, err := strconv.Atoi(parts[2])
	if err != nil {
		return err
	}
	*p = Point{Name: parts[0], X: x, Y: y}
	return nil
}

// RatedPoint is a value with object metadata
type RatedPoint struct {
	Point
	rating Author
}

func (p RatedPoint) Metadata() Author      { return p.rating }
func (p *RatedPoint) SetMetadata(a Author) { p.rating = a }

var ratedPointArchiver = ArchiverFuncs[RatedPoint]{
	ArchiveFunc: func(p RatedPoint) ([]byte, error) { return p.Point.Archive() },
	UnarchiveFunc: func(data []byte) (RatedPoint, error) {
		var p RatedPoint
		err := p.Point.Unarchive(data)
		return p, err
	},
}

// LabeledPoint is a value with protobuf value metadata
type LabeledPoint struct {
	Point
	label *wrapperspb.StringValue
}

func (p LabeledPoint) Metadata() *wrapperspb.StringValue      { return p.label }
func (p *LabeledPoint) SetMetadata(l *wrapperspb.StringValue) { p.label = l }

var labeledPointArchiver = ArchiverFuncs[LabeledPoint]{
	ArchiveFunc: func(p LabeledPoint) ([]byte, error) { return p.Point.Archive() },
	UnarchiveFunc: func(data []byte) (LabeledPoint, error) {
		var p LabeledPoint
		err := p.Point.Unarchive(data)
		return p, err
	},
}

func labeledEqual(a, b LabeledPoint) bool {
	return a.Point == b.Point && proto.Equal(a.label, b.label)
}

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

func newTestDatabase(t *testing.T, opts *store.Options) *store.Database {
	t.Helper()
	d, err := store.NewDatabase(func() (db.KVDB, error) { return maple.NewMapleDB(nil), nil }, opts)
	if err != nil {
		t.Fatalf("NewDatabase failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newTestConnection(t *testing.T) *store.Connection {
	return newTestDatabase(t, nil).NewConnection()
}

// failingCommitDB wraps an engine whose commits always fail
type failingCommitDB struct {
	db.KVDB
}

func (f failingCommitDB) Begin(writable bool) (db.Txn, error) {
	txn, err := f.KVDB.Begin(writable)
	if err != nil {
		return nil, err
	}
	return failingCommitTxn{txn}, nil
}

type failingCommitTxn struct {
	db.Txn
}

var errDiskFull = errors.New("disk full")

func (failingCommitTxn) Commit() error { return errDiskFull }

// roundTrip writes v with m, reads it back by key and compares
func roundTrip[T any](t *testing.T, conn *store.Connection, m Mapping[T], v T, equal func(a, b T) bool) {
	t.Helper()
	repo := New(conn, m)

	written, err := repo.Write(v)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !equal(written, v) {
		t.Errorf("Write must return its input, got %+v", written)
	}

	got, found, err := repo.Read(m.AddressOf(v).Key)
	if err != nil || !found {
		t.Fatalf("Read: found=%v err=%v", found, err)
	}
	if !equal(got, v) {
		t.Errorf("round trip mismatch:\nwrote %+v\nread  %+v", v, got)
	}
}

func deepEqual[T any](a, b T) bool { return reflect.DeepEqual(a, b) }

func pointeeEqual[T any](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(*a, *b)
}

// pointArchiver archives *Point values
var pointArchiver Archiver[*Point] = ArchiverFuncs[*Point]{
	ArchiveFunc: func(p *Point) ([]byte, error) { return p.Archive() },
	UnarchiveFunc: func(data []byte) (*Point, error) {
		p := &Point{}
		if err := p.Unarchive(data); err != nil {
			return nil, err
		}
		return p, nil
	},
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestVariantsRoundTrip(t *testing.T) {
	for _, codecName := range codec.Names {
		t.Run(codecName, func(t *testing.T) {
			c, _ := codec.ByName(codecName)
			conn := newTestDatabase(t, &store.Options{Codec: c}).NewConnection()

			t.Run("Object", func(t *testing.T) {
				m := Objects[Item]()
				if m.Variant() != VariantObject {
					t.Errorf("variant = %s", m.Variant())
				}
				roundTrip(t, conn, m, Item{ID: "i1", Payload: "X"}, deepEqual[Item])
			})

			t.Run("ObjectWithObjectMetadata", func(t *testing.T) {
				m := ObjectsWithObjectMetadata[Doc, Author]()
				if m.Variant() != VariantObjectWithObjectMetadata {
					t.Errorf("variant = %s", m.Variant())
				}
				roundTrip(t, conn, m, Doc{ID: "d1", Body: "text", author: Author{Name: "ada", Revision: 3}}, deepEqual[Doc])
			})

			t.Run("ObjectWithValueMetadata", func(t *testing.T) {
				m := ObjectsWithValueMetadata[Note, Stamp](stampArchiver)
				if m.Variant() != VariantObjectWithValueMetadata {
					t.Errorf("variant = %s", m.Variant())
				}
				roundTrip(t, conn, m, Note{ID: "n1", Text: "hi", stamp: Stamp{Unix: 1700000000}}, deepEqual[Note])
			})

			t.Run("Value", func(t *testing.T) {
				m := Values(SelfArchiver[Point]())
				if m.Variant() != VariantValue {
					t.Errorf("variant = %s", m.Variant())
				}
				roundTrip(t, conn, m, Point{Name: "p1", X: -4, Y: 7}, deepEqual[Point])
			})

			t.Run("ValueWithObjectMetadata", func(t *testing.T) {
				m := ValuesWithObjectMetadata[RatedPoint, Author](ratedPointArchiver)
				if m.Variant() != VariantValueWithObjectMetadata {
					t.Errorf("variant = %s", m.Variant())
				}
				roundTrip(t, conn, m, RatedPoint{Point: Point{Name: "r1", X: 1, Y: 2}, rating: Author{Name: "bob", Revision: 1}}, deepEqual[RatedPoint])
			})

			t.Run("ValueWithValueMetadata", func(t *testing.T) {
				m := ValuesWithValueMetadata[LabeledPoint, *wrapperspb.StringValue](labeledPointArchiver, ProtoArchiver[*wrapperspb.StringValue]())
				if m.Variant() != VariantValueWithValueMetadata {
					t.Errorf("variant = %s", m.Variant())
				}
				roundTrip(t, conn, m, LabeledPoint{Point: Point{Name: "l1", X: 9, Y: 9}, label: wrapperspb.String("origin")}, labeledEqual)
			})

			t.Run("ObjectPointer", func(t *testing.T) {
				m := Objects[*Doc]()
				if m.Collection() != "documents" {
					t.Errorf("collection = %q", m.Collection())
				}
				roundTrip(t, conn, m, &Doc{ID: "dp1", Body: "by pointer"}, pointeeEqual[Doc])
			})

			t.Run("ValuePointer", func(t *testing.T) {
				m := Values(pointArchiver)
				if m.Collection() != "Point" {
					t.Errorf("collection = %q", m.Collection())
				}
				roundTrip(t, conn, m, &Point{Name: "pp1", X: 3, Y: -3}, pointeeEqual[Point])
			})
		})
	}
}

func TestAddressDerivation(t *testing.T) {
	item := Item{ID: "abc123", Payload: "X"}

	if got := AddressOf(item); got != (Address{Collection: "Item", Key: "abc123"}) {
		t.Errorf("AddressOf = %v", got)
	}
	if AddressOf(item) != AddressOf(item) {
		t.Errorf("AddressOf must be stable")
	}
	if got := AddressIn(item, "archive"); got != (Address{Collection: "archive", Key: "abc123"}) {
		t.Errorf("AddressIn = %v", got)
	}

	// pointers are dereferenced
	if got := CollectionOf[*Item](); got != "Item" {
		t.Errorf("CollectionOf[*Item] = %q", got)
	}
	// CollectionName replaces the type name
	if got := CollectionOf[Doc](); got != "documents" {
		t.Errorf("CollectionOf[Doc] = %q", got)
	}
	if got := CollectionOf[*Doc](); got != "documents" {
		t.Errorf("CollectionOf[*Doc] = %q", got)
	}
	if got := CollectionOf[**Doc](); got != "documents" {
		t.Errorf("CollectionOf[**Doc] = %q", got)
	}
	if got := AddressOf(&Doc{ID: "x"}); got != (Address{Collection: "documents", Key: "x"}) {
		t.Errorf("AddressOf(&Doc) = %v", got)
	}
	if got := Objects[*Doc]().AddressOf(&Doc{ID: "x"}); got != (Address{Collection: "documents", Key: "x"}) {
		t.Errorf("Objects[*Doc].AddressOf = %v", got)
	}

	// metadata never changes the address
	m := ObjectsWithObjectMetadata[Doc, Author]()
	a := Doc{ID: "d", author: Author{Name: "a"}}
	b := Doc{ID: "d", author: Author{Name: "b", Revision: 9}}
	if m.AddressOf(a) != m.AddressOf(b) {
		t.Errorf("metadata changed the address: %v vs %v", m.AddressOf(a), m.AddressOf(b))
	}

	// In only replaces the collection
	moved := m.In("elsewhere")
	if moved.AddressOf(a) != (Address{Collection: "elsewhere", Key: "d"}) {
		t.Errorf("In: %v", moved.AddressOf(a))
	}
	if m.Collection() != "documents" {
		t.Errorf("In must not modify the original mapping")
	}
}

func TestOverwriteScenario(t *testing.T) {
	conn := newTestConnection(t)
	repo := New(conn, Objects[Item]())

	if _, err := repo.Write(Item{ID: "abc123", Payload: "X"}); err != nil {
		t.Fatal(err)
	}

	// stored under the type name
	err := conn.Read(func(txn store.ReadTransaction) error {
		found, err := txn.Has(Address{Collection: "Item", Key: "abc123"})
		if err != nil || !found {
			return fmt.Errorf("value not stored in collection Item: found=%v err=%v", found, err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got, found, err := repo.Read("abc123")
	if err != nil || !found || got != (Item{ID: "abc123", Payload: "X"}) {
		t.Fatalf("Read = %+v, %v, %v", got, found, err)
	}

	if _, err := repo.Write(Item{ID: "abc123", Payload: "Y"}); err != nil {
		t.Fatalf("overwrite must not fail: %v", err)
	}
	got, _, err = repo.Read("abc123")
	if err != nil || got.Payload != "Y" {
		t.Errorf("expected overwrite with Y, got %+v, %v", got, err)
	}
}

func TestReadMissingIsNotAnError(t *testing.T) {
	repo := New(newTestConnection(t), Objects[Item]())
	v, found, err := repo.Read("missing")
	if err != nil || found || v != (Item{}) {
		t.Errorf("Read(missing) = %+v, %v, %v", v, found, err)
	}
}

func TestIdempotentRemove(t *testing.T) {
	repo := New(newTestConnection(t), Objects[Item]())
	item := Item{ID: "gone", Payload: "soon"}
	if _, err := repo.Write(item); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := repo.Remove(item); err != nil {
			t.Fatalf("Remove #%d failed: %v", i+1, err)
		}
	}
	if _, found, _ := repo.Read("gone"); found {
		t.Errorf("value still present after Remove")
	}
}

func TestReadAllBestEffort(t *testing.T) {
	repo := New(newTestConnection(t), Objects[Item]())
	stored := []Item{{ID: "a", Payload: "1"}, {ID: "c", Payload: "3"}, {ID: "e", Payload: "5"}}
	if _, err := repo.WriteAll(stored); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ReadAll([]string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("ReadAll must not fail for missing keys: %v", err)
	}
	if !reflect.DeepEqual(got, stored) {
		t.Errorf("ReadAll = %+v, want %+v", got, stored)
	}

	none, err := repo.ReadAll([]string{"x", "y"})
	if err != nil || len(none) != 0 {
		t.Errorf("ReadAll of missing keys = %v, %v", none, err)
	}
}

func TestCollectionAndMetadataReads(t *testing.T) {
	conn := newTestConnection(t)
	m := ObjectsWithObjectMetadata[Doc, Author]()
	repo := New(conn, m)

	docs := []Doc{
		{ID: "b", Body: "2", author: Author{Name: "x"}},
		{ID: "a", Body: "1", author: Author{Name: "y", Revision: 2}},
	}
	if _, err := repo.WriteAll(docs); err != nil {
		t.Fatal(err)
	}

	all, err := repo.ReadCollection()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Errorf("ReadCollection = %+v", all)
	}

	keys, err := repo.Keys()
	if err != nil || fmt.Sprint(keys) != "[a b]" {
		t.Errorf("Keys = %v, %v", keys, err)
	}

	err = conn.Read(func(txn store.ReadTransaction) error {
		author, found, err := ReadMetadata[Doc, Author](txn, m, "a")
		if err != nil || !found || author != (Author{Name: "y", Revision: 2}) {
			return fmt.Errorf("ReadMetadata = %+v, %v, %v", author, found, err)
		}
		if _, _, err := ReadMetadata[Doc, Stamp](txn, m, "a"); !errors.Is(err, store.ErrInvalidOperation) {
			return fmt.Errorf("wrong metadata type: expected invalid operation, got %v", err)
		}
		if _, _, err := ReadMetadata[Item, Author](txn, Objects[Item](), "a"); !errors.Is(err, store.ErrInvalidOperation) {
			return fmt.Errorf("mapping without metadata: expected invalid operation, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Error(err)
	}

	if err := repo.RemoveKeys([]string{"a", "b", "missing"}); err != nil {
		t.Fatal(err)
	}
	if all, _ := repo.ReadCollection(); len(all) != 0 {
		t.Errorf("collection not empty after RemoveKeys: %+v", all)
	}
}

func TestNilMetadataStoresNone(t *testing.T) {
	conn := newTestConnection(t)
	m := ValuesWithValueMetadata[LabeledPoint, *wrapperspb.StringValue](labeledPointArchiver, ProtoArchiver[*wrapperspb.StringValue]())
	repo := New(conn, m)

	p := LabeledPoint{Point: Point{Name: "bare", X: 1, Y: 1}}
	if _, err := repo.Write(p); err != nil {
		t.Fatal(err)
	}

	err := conn.Read(func(txn store.ReadTransaction) error {
		_, metadata, found, err := txn.Get(m.AddressOf(p))
		if err != nil || !found || metadata != nil {
			return fmt.Errorf("expected an entry without metadata: metadata=%v found=%v err=%v", metadata, found, err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _, err := repo.Read("bare")
	if err != nil || got.label != nil || got.Point != p.Point {
		t.Errorf("Read = %+v, %v", got, err)
	}
}

func TestDecodingErrorPropagates(t *testing.T) {
	conn := newTestConnection(t)
	m := Values(SelfArchiver[Point]())
	repo := New(conn, m)

	// a payload the archiver rejects
	if err := conn.ReadWrite(func(txn store.ReadWriteTransaction) error {
		return txn.Set(m.AddressFor("broken"), []byte("not a point"), nil)
	}); err != nil {
		t.Fatal(err)
	}

	if _, found, err := repo.Read("broken"); !errors.Is(err, store.ErrDecoding) || found {
		t.Errorf("sync Read: expected a decoding error, got found=%v err=%v", found, err)
	}
	if _, err := repo.ReadAll([]string{"broken"}); !errors.Is(err, store.ErrDecoding) {
		t.Errorf("ReadAll: expected a decoding error, got %v", err)
	}
	if _, err := repo.FutureRead("broken").Receive(); !errors.Is(err, store.ErrDecoding) {
		t.Errorf("FutureRead: expected a decoding error, got %v", err)
	}

	task := repo.ReadOperation("broken")
	task.Start()
	if _, err := task.Result(); !errors.Is(err, store.ErrDecoding) {
		t.Errorf("ReadOperation: expected a decoding error, got %v", err)
	}

	done := make(chan error, 1)
	repo.AsyncRead("broken", func(_ Point, _ bool, err error) { done <- err })
	if err := <-done; !errors.Is(err, store.ErrDecoding) {
		t.Errorf("AsyncRead: expected a decoding error, got %v", err)
	}
}

func TestArchiverStoreErrorBecomesDecodingError(t *testing.T) {
	conn := newTestConnection(t)
	rejecting := ArchiverFuncs[Point]{
		ArchiveFunc: func(p Point) ([]byte, error) { return p.Archive() },
		UnarchiveFunc: func([]byte) (Point, error) {
			return Point{}, store.NewError(store.RetCInvalidOperation, "unexpected payload")
		},
	}
	repo := New(conn, Values[Point](rejecting))

	if _, err := repo.Write(Point{Name: "p", X: 1, Y: 1}); err != nil {
		t.Fatal(err)
	}
	_, found, err := repo.Read("p")
	if found || !errors.Is(err, store.ErrDecoding) {
		t.Fatalf("expected a decoding error, got found=%v err=%v", found, err)
	}
	if code := store.CodeOf(err); code != store.RetCDecodingError {
		t.Errorf("code = %s, want %s", code, store.RetCDecodingError)
	}
}

func TestCommitErrorPropagates(t *testing.T) {
	d, err := store.NewDatabase(func() (db.KVDB, error) { return failingCommitDB{maple.NewMapleDB(nil)}, nil }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	repo := NewForDatabase(d, Objects[Item]())
	item := Item{ID: "k", Payload: "v"}

	if _, err := repo.Write(item); !errors.Is(err, store.ErrTransaction) || !errors.Is(err, errDiskFull) {
		t.Errorf("Write: expected a transaction error wrapping the engine error, got %v", err)
	}
	if _, err := repo.FutureWrite(item).Receive(); !errors.Is(err, store.ErrTransaction) {
		t.Errorf("FutureWrite: expected a transaction error, got %v", err)
	}
	task := repo.WriteOperation(item)
	task.Start()
	if err := task.Err(); !errors.Is(err, store.ErrTransaction) {
		t.Errorf("WriteOperation: expected a transaction error, got %v", err)
	}
	done := make(chan error, 1)
	repo.AsyncRemove(item, func(err error) { done <- err })
	if err := <-done; !errors.Is(err, store.ErrTransaction) {
		t.Errorf("AsyncRemove: expected a transaction error, got %v", err)
	}
}

func TestVariantString(t *testing.T) {
	names := map[Variant]string{
		VariantObject:                   "Object",
		VariantObjectWithObjectMetadata: "Object+ObjectMetadata",
		VariantObjectWithValueMetadata:  "Object+ValueMetadata",
		VariantValue:                    "Value",
		VariantValueWithObjectMetadata:  "Value+ObjectMetadata",
		VariantValueWithValueMetadata:   "Value+ValueMetadata",
		Variant(99):                     "Unknown",
	}
	for v, want := range names {
		if v.String() != want {
			t.Errorf("Variant(%d).String() = %q, want %q", int(v), v.String(), want)
		}
	}
}
