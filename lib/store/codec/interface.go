package codec

import "fmt"

// ICodec is the interface for all native object codecs of a database.
// A codec turns any value it supports into bytes and back.
type ICodec interface {
	// Name returns the name the codec is selected by
	Name() string
	// Marshal encodes v into a byte array
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes b into the value pointed to by v
	Unmarshal(b []byte, v any) error
}

// Names lists the names of all available codecs
var Names = []string{"json", "gob", "cbor", "msgpack"}

// ByName returns the codec registered under name
func ByName(name string) (ICodec, error) {
	switch name {
	case "json", "":
		return NewJSONCodec(), nil
	case "gob":
		return NewGOBCodec(), nil
	case "cbor":
		return NewCBORCodec(), nil
	case "msgpack":
		return NewMsgpackCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", name)
	}
}
