package persist

import (
	"reflect"

	"github.com/ValentinKolb/kvmap/lib/store"
)

// Address identifies the storage slot of a value
type Address = store.Address

// CollectionOf returns the collection values of type T are stored in by
// default: CollectionName if T implements CollectionNamer, otherwise the name
// of T with all pointers removed
func CollectionOf[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	// CollectionName is called on a fresh value of the base type, never on a nil pointer
	ptr := reflect.New(t)
	if namer, ok := ptr.Elem().Interface().(CollectionNamer); ok {
		return namer.CollectionName()
	}
	if namer, ok := ptr.Interface().(CollectionNamer); ok {
		return namer.CollectionName()
	}
	return t.Name()
}

// AddressOf returns the address of v in its default collection
func AddressOf[T Persistable](v T) Address {
	return Address{Collection: CollectionOf[T](), Key: v.Identifier()}
}

// AddressIn returns the address of v in collection
func AddressIn[T Persistable](v T, collection string) Address {
	return Address{Collection: collection, Key: v.Identifier()}
}
