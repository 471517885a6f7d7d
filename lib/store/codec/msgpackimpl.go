package codec

import (
	"github.com/hashicorp/go-msgpack/codec"
)

// NewMsgpackCodec creates a new codec using MessagePack
func NewMsgpackCodec() ICodec {
	return &msgpackCodecImpl{handle: &codec.MsgpackHandle{}}
}

// msgpackCodecImpl implements the ICodec interface using hashicorp/go-msgpack.
// The handle is read only after construction and can be shared between goroutines.
type msgpackCodecImpl struct {
	handle *codec.MsgpackHandle
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (m msgpackCodecImpl) Name() string { return "msgpack" }

func (m msgpackCodecImpl) Marshal(v any) ([]byte, error) {
	var b []byte
	if err := codec.NewEncoderBytes(&b, m.handle).Encode(v); err != nil {
		return nil, err
	}
	return b, nil
}

func (m msgpackCodecImpl) Unmarshal(b []byte, v any) error {
	return codec.NewDecoderBytes(b, m.handle).Decode(v)
}
