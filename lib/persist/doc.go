// Package persist is the persistence router: it maps typed values to storage
// addresses and payloads and runs reads, writes and removes in the calling
// idiom the caller picks.
//
// Capabilities:
//
//	A type is storable if it implements Persistable (Identifier). The key of a
//	value is its identifier, its collection is CollectionName if the type
//	implements CollectionNamer and the Go type name otherwise. Mapping.In
//	overrides the collection. Addresses are computed fresh on every call and
//	depend on nothing but the identifier and the collection.
//
// Variants:
//
//	Values are either objects (encoded with the database codec) or values
//	(encoded with an Archiver). Metadata, exposed by Metadata() and accepted by
//	SetMetadata on the pointer type, is independently an object or a value.
//	The six combinations have one constructor each, so the variant is fixed at
//	compile time:
//
//	  Objects                    ObjectsWithObjectMetadata    ObjectsWithValueMetadata
//	  Values                     ValuesWithObjectMetadata     ValuesWithValueMetadata
//
// Idioms:
//
//	Write, WriteAll, Read, ReadAll, Remove and RemoveAll exist as plain
//	functions on a transaction and as Repository methods in four idioms: sync,
//	callback async, future and operation. Completions are delivered on the
//	repository's queue, dispatch.Main() unless changed with WithQueue or On.
//
// Errors:
//
//	A missing value is not an error: Read reports found == false and ReadAll
//	omits it. A payload that does not decode is a store.RetCDecodingError and a
//	failed commit a store.RetCTransactionError. An operation cancelled before
//	its transaction began fails with store.RetCCancelled and writes nothing.
package persist
