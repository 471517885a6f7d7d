package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// NewCBORCodec creates a new codec using CBOR (RFC 8949)
func NewCBORCodec() ICodec {
	return &cborCodecImpl{}
}

// cborCodecImpl implements the ICodec interface using fxamacker/cbor
type cborCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (c cborCodecImpl) Name() string { return "cbor" }

func (c cborCodecImpl) Marshal(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (c cborCodecImpl) Unmarshal(b []byte, v any) error {
	return cbor.Unmarshal(b, v)
}
