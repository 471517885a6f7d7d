package persist

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// --------------------------------------------------------------------------
// Capabilities
// --------------------------------------------------------------------------

// Persistable is implemented by every value the router can store. The
// identifier is the key of the value inside its collection.
type Persistable interface {
	Identifier() string
}

// CollectionNamer replaces the type derived collection of a Persistable
type CollectionNamer interface {
	CollectionName() string
}

// MetadataPersistable is a Persistable carrying a metadata companion of type M
type MetadataPersistable[M any] interface {
	Persistable
	Metadata() M
}

// MetadataSetter is the pointer type of T that accepts a metadata companion
// back after a read
type MetadataSetter[T, M any] interface {
	*T
	SetMetadata(M)
}

// --------------------------------------------------------------------------
// Archivers
// --------------------------------------------------------------------------

// Archiver converts a value-style type to its stored payload and back
type Archiver[T any] interface {
	Archive(value T) ([]byte, error)
	Unarchive(data []byte) (T, error)
}

// ArchiverFuncs is an Archiver made of two functions
type ArchiverFuncs[T any] struct {
	ArchiveFunc   func(value T) ([]byte, error)
	UnarchiveFunc func(data []byte) (T, error)
}

func (a ArchiverFuncs[T]) Archive(value T) ([]byte, error) {
	return a.ArchiveFunc(value)
}

func (a ArchiverFuncs[T]) Unarchive(data []byte) (T, error) {
	return a.UnarchiveFunc(data)
}

// Archivable is a type that archives itself
type Archivable interface {
	Archive() ([]byte, error)
}

// Unarchivable is the pointer type of T that restores itself from a payload
type Unarchivable[T any] interface {
	*T
	Unarchive(data []byte) error
}

// SelfArchiver returns the Archiver of a type implementing Archive and, on
// its pointer, Unarchive
func SelfArchiver[T Archivable, PT Unarchivable[T]]() Archiver[T] {
	return ArchiverFuncs[T]{
		ArchiveFunc: func(value T) ([]byte, error) {
			return value.Archive()
		},
		UnarchiveFunc: func(data []byte) (T, error) {
			var value T
			if err := PT(&value).Unarchive(data); err != nil {
				var zero T
				return zero, err
			}
			return value, nil
		},
	}
}

// ProtoArchiver returns the Archiver of a protobuf message type such as
// *wrapperspb.StringValue
func ProtoArchiver[T proto.Message]() Archiver[T] {
	return ArchiverFuncs[T]{
		ArchiveFunc: func(value T) ([]byte, error) {
			return proto.Marshal(value)
		},
		UnarchiveFunc: func(data []byte) (T, error) {
			var zero T
			msg, ok := zero.ProtoReflect().New().Interface().(T)
			if !ok {
				return zero, fmt.Errorf("unexpected message type %T", msg)
			}
			if err := proto.Unmarshal(data, msg); err != nil {
				return zero, err
			}
			return msg, nil
		},
	}
}
