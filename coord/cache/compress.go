package cache

import (
	"github.com/klauspost/compress/zstd"
)

// payloadCompressor is the compression seam for the compressed and
// persistent tiers. decompress(compress(p)) must equal p for all payloads;
// a compress error makes the manager fall back to storing raw bytes.
type payloadCompressor interface {
	compress(data []byte) ([]byte, error)
	decompress(data []byte) ([]byte, error)
}

// zstdCompressor wraps a shared zstd encoder/decoder pair. The zstd objects
// are safe for concurrent use via EncodeAll/DecodeAll with per-call buffers.
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor() (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (c *zstdCompressor) compress(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (c *zstdCompressor) decompress(data []byte) ([]byte, error) {
	// a non-nil dst keeps the empty payload round-tripping to []byte{}
	return c.dec.DecodeAll(data, make([]byte, 0, len(data)*2))
}
