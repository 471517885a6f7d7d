package persist

import (
	"fmt"
	"reflect"

	"github.com/ValentinKolb/kvmap/lib/store/codec"
)

// Variant is one of the six ways a type and its metadata are stored
type Variant int

const (
	VariantObject                   Variant = iota // codec encoded value, no metadata
	VariantObjectWithObjectMetadata                // codec encoded value and metadata
	VariantObjectWithValueMetadata                 // codec encoded value, archived metadata
	VariantValue                                   // archived value, no metadata
	VariantValueWithObjectMetadata                 // archived value, codec encoded metadata
	VariantValueWithValueMetadata                  // archived value and metadata
)

func (v Variant) String() string {
	switch v {
	case VariantObject:
		return "Object"
	case VariantObjectWithObjectMetadata:
		return "Object+ObjectMetadata"
	case VariantObjectWithValueMetadata:
		return "Object+ValueMetadata"
	case VariantValue:
		return "Value"
	case VariantValueWithObjectMetadata:
		return "Value+ObjectMetadata"
	case VariantValueWithValueMetadata:
		return "Value+ValueMetadata"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Mapping
// --------------------------------------------------------------------------

// Mapping binds a type to its storage variant and collection. Mappings are
// immutable values and can be shared freely.
type Mapping[T any] struct {
	variant    Variant
	collection string
	key        func(v T) string
	value      payloadCodec[T]
	metadata   metadataCodec[T]
}

// Variant returns the storage variant of the mapping
func (m Mapping[T]) Variant() Variant {
	return m.variant
}

// Collection returns the collection the mapping reads and writes
func (m Mapping[T]) Collection() string {
	return m.collection
}

// HasMetadata reports whether the mapping stores a metadata companion
func (m Mapping[T]) HasMetadata() bool {
	return m.metadata.encode != nil
}

// In returns a copy of the mapping that stores values in collection
func (m Mapping[T]) In(collection string) Mapping[T] {
	m.collection = collection
	return m
}

// AddressOf returns the address of v under the mapping
func (m Mapping[T]) AddressOf(v T) Address {
	return Address{Collection: m.collection, Key: m.key(v)}
}

// AddressFor returns the address of key under the mapping
func (m Mapping[T]) AddressFor(key string) Address {
	return Address{Collection: m.collection, Key: key}
}

func (m Mapping[T]) String() string {
	return fmt.Sprintf("%s(%s)", m.collection, m.variant)
}

// encode returns the object and metadata payloads of v.
// metadata is nil if the mapping or v has none.
func (m Mapping[T]) encode(c codec.ICodec, v T) (object, metadata []byte, err error) {
	if object, err = m.value.encode(c, v); err != nil {
		return nil, nil, err
	}
	if m.metadata.encode != nil {
		if metadata, err = m.metadata.encode(c, v); err != nil {
			return nil, nil, err
		}
	}
	return object, metadata, nil
}

// decode restores a value from its payloads. A nil metadata leaves the
// metadata of the value untouched.
func (m Mapping[T]) decode(c codec.ICodec, object, metadata []byte) (T, error) {
	v, err := m.value.decode(c, object)
	if err != nil {
		var zero T
		return zero, err
	}
	if metadata != nil && m.metadata.apply != nil {
		if err := m.metadata.apply(c, metadata, &v); err != nil {
			var zero T
			return zero, err
		}
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// Objects maps a type encoded with the database codec, without metadata
func Objects[T Persistable]() Mapping[T] {
	return newMapping(VariantObject, objectPayload[T](), metadataCodec[T]{})
}

// ObjectsWithObjectMetadata maps a type whose value and metadata are both
// encoded with the database codec
func ObjectsWithObjectMetadata[T MetadataPersistable[M], M any, PT MetadataSetter[T, M]]() Mapping[T] {
	return newMapping(VariantObjectWithObjectMetadata, objectPayload[T](), metadataOf[T, M, PT](objectPayload[M]()))
}

// ObjectsWithValueMetadata maps a type encoded with the database codec whose
// metadata is archived
func ObjectsWithValueMetadata[T MetadataPersistable[M], M any, PT MetadataSetter[T, M]](metadata Archiver[M]) Mapping[T] {
	return newMapping(VariantObjectWithValueMetadata, objectPayload[T](), metadataOf[T, M, PT](archivedPayload(metadata)))
}

// Values maps an archived type without metadata
func Values[T Persistable](archiver Archiver[T]) Mapping[T] {
	return newMapping(VariantValue, archivedPayload(archiver), metadataCodec[T]{})
}

// ValuesWithObjectMetadata maps an archived type whose metadata is encoded
// with the database codec
func ValuesWithObjectMetadata[T MetadataPersistable[M], M any, PT MetadataSetter[T, M]](archiver Archiver[T]) Mapping[T] {
	return newMapping(VariantValueWithObjectMetadata, archivedPayload(archiver), metadataOf[T, M, PT](objectPayload[M]()))
}

// ValuesWithValueMetadata maps an archived type with archived metadata
func ValuesWithValueMetadata[T MetadataPersistable[M], M any, PT MetadataSetter[T, M]](archiver Archiver[T], metadata Archiver[M]) Mapping[T] {
	return newMapping(VariantValueWithValueMetadata, archivedPayload(archiver), metadataOf[T, M, PT](archivedPayload(metadata)))
}

func newMapping[T Persistable](variant Variant, value payloadCodec[T], metadata metadataCodec[T]) Mapping[T] {
	return Mapping[T]{
		variant:    variant,
		collection: CollectionOf[T](),
		key:        func(v T) string { return v.Identifier() },
		value:      value,
		metadata:   metadata,
	}
}

// --------------------------------------------------------------------------
// Payload strategies
// --------------------------------------------------------------------------

// payloadCodec turns a value into a payload and back
type payloadCodec[T any] struct {
	encode func(c codec.ICodec, v T) ([]byte, error)
	decode func(c codec.ICodec, data []byte) (T, error)
}

// objectPayload encodes with the database codec
func objectPayload[T any]() payloadCodec[T] {
	return payloadCodec[T]{
		encode: func(c codec.ICodec, v T) ([]byte, error) {
			return c.Marshal(v)
		},
		decode: func(c codec.ICodec, data []byte) (T, error) {
			var v T
			if err := c.Unmarshal(data, &v); err != nil {
				var zero T
				return zero, err
			}
			return v, nil
		},
	}
}

// archivedPayload encodes with an Archiver
func archivedPayload[T any](archiver Archiver[T]) payloadCodec[T] {
	return payloadCodec[T]{
		encode: func(_ codec.ICodec, v T) ([]byte, error) {
			return archiver.Archive(v)
		},
		decode: func(_ codec.ICodec, data []byte) (T, error) {
			return archiver.Unarchive(data)
		},
	}
}

// metadataCodec reads the metadata companion out of a value and writes it back
type metadataCodec[T any] struct {
	encode func(c codec.ICodec, v T) ([]byte, error)
	apply  func(c codec.ICodec, data []byte, v *T) error
	decode func(c codec.ICodec, data []byte) (any, error)
}

func metadataOf[T MetadataPersistable[M], M any, PT MetadataSetter[T, M]](payload payloadCodec[M]) metadataCodec[T] {
	return metadataCodec[T]{
		encode: func(c codec.ICodec, v T) ([]byte, error) {
			m := v.Metadata()
			if isNil(m) {
				return nil, nil
			}
			return payload.encode(c, m)
		},
		apply: func(c codec.ICodec, data []byte, v *T) error {
			m, err := payload.decode(c, data)
			if err != nil {
				return err
			}
			PT(v).SetMetadata(m)
			return nil
		},
		decode: func(c codec.ICodec, data []byte) (any, error) {
			return payload.decode(c, data)
		},
	}
}

// isNil reports whether v is nil or a nil pointer, map, slice or interface
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
