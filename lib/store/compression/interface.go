package compression

import (
	"errors"
	"fmt"
)

// ID identifies a compression algorithm inside a stored payload
type ID byte

const (
	IDNone   ID = iota // 0: payload is stored as is
	IDSnappy           // 1: golang/snappy block format
	IDZstd             // 2: zstd frame
	IDLZ4              // 3: lz4 frame
)

var (
	// ErrUnknownAlgorithm is returned for a name or id without an algorithm
	ErrUnknownAlgorithm = errors.New("unknown compression algorithm")
	// ErrEmptyPayload is returned when a payload lacks the algorithm id
	ErrEmptyPayload = errors.New("payload has no compression header")
)

// ICompressor is the interface for all compression algorithms
type ICompressor interface {
	// ID returns the id written in front of every payload compressed by the algorithm
	ID() ID
	// Name returns the name the algorithm is selected by
	Name() string
	// Compress returns the compressed form of data
	Compress(data []byte) ([]byte, error)
	// Decompress reverses Compress
	Decompress(data []byte) ([]byte, error)
}

// Names lists the names of all available algorithms
var Names = []string{"none", "snappy", "zstd", "lz4"}

// ByName returns the algorithm registered under name
func ByName(name string) (ICompressor, error) {
	switch name {
	case "none", "":
		return noneImpl{}, nil
	case "snappy":
		return snappyImpl{}, nil
	case "zstd":
		return zstdImpl{}, nil
	case "lz4":
		return lz4Impl{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
}

// ByID returns the algorithm with the given id
func ByID(id ID) (ICompressor, error) {
	switch id {
	case IDNone:
		return noneImpl{}, nil
	case IDSnappy:
		return snappyImpl{}, nil
	case IDZstd:
		return zstdImpl{}, nil
	case IDLZ4:
		return lz4Impl{}, nil
	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnknownAlgorithm, id)
	}
}

// --------------------------------------------------------------------------
// Envelope
// --------------------------------------------------------------------------

// Encode compresses data with c and prefixes the result with the algorithm id
func Encode(c ICompressor, data []byte) ([]byte, error) {
	body, err := c.Compress(data)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+len(body))
	out[0] = byte(c.ID())
	copy(out[1:], body)
	return out, nil
}

// Decode reads the algorithm id of payload and decompresses the rest.
// The result is never nil, an empty payload decodes to an empty slice.
func Decode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	c, err := ByID(ID(payload[0]))
	if err != nil {
		return nil, err
	}
	out, err := c.Decompress(payload[1:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}
