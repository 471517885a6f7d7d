package compression

import (
	"bytes"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// --------------------------------------------------------------------------
// None
// --------------------------------------------------------------------------

type noneImpl struct{}

func (noneImpl) ID() ID       { return IDNone }
func (noneImpl) Name() string { return "none" }

func (noneImpl) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (noneImpl) Decompress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// --------------------------------------------------------------------------
// Snappy
// --------------------------------------------------------------------------

type snappyImpl struct{}

func (snappyImpl) ID() ID       { return IDSnappy }
func (snappyImpl) Name() string { return "snappy" }

func (snappyImpl) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyImpl) Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

// --------------------------------------------------------------------------
// Zstd
// --------------------------------------------------------------------------

// EncodeAll and DecodeAll may be used concurrently, so one encoder and one
// decoder serve the whole process
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil)
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

type zstdImpl struct{}

func (zstdImpl) ID() ID       { return IDZstd }
func (zstdImpl) Name() string { return "zstd" }

func (zstdImpl) Compress(data []byte) ([]byte, error) {
	enc, err := zstdEncoder()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, nil), nil
}

func (zstdImpl) Decompress(data []byte) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, err
	}
	return dec.DecodeAll(data, nil)
}

// --------------------------------------------------------------------------
// LZ4
// --------------------------------------------------------------------------

type lz4Impl struct{}

func (lz4Impl) ID() ID       { return IDLZ4 }
func (lz4Impl) Name() string { return "lz4" }

// An empty input is stored as an empty body without a frame.
func (lz4Impl) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)

	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Impl) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	reader := lz4.NewReader(bytes.NewReader(data))
	return io.ReadAll(reader)
}
