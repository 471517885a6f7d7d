// Package codec provides the native object codecs of a database. Object-style
// values (values without an explicit archiver) are encoded with the codec the
// database was opened with.
//
// Key Components:
//
//   - ICodec: Core interface that all codec implementations must satisfy.
//
//   - jsonCodecImpl: encoding/json. Human-readable payloads, the default.
//
//   - gobCodecImpl: encoding/gob. Every payload carries its type description,
//     which makes it the largest of the codecs.
//
//   - cborCodecImpl: fxamacker/cbor. Compact binary payloads with JSON-like
//     struct tag support.
//
//   - msgpackCodecImpl: hashicorp/go-msgpack. Compact binary payloads.
//
// Thread Safety:
//
//	All codec implementations are safe for concurrent use across multiple
//	goroutines without additional synchronization.
//
// Usage:
//
//	c, err := codec.ByName("cbor")
//	data, err := c.Marshal(value)
//	var out Value
//	err = c.Unmarshal(data, &out)
package codec
