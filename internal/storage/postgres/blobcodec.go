package postgres

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	// blobCodecRaw tags a chunk stored uncompressed.
	blobCodecRaw byte = 0x00
	// blobCodecZstd tags a chunk compressed with zstd.
	blobCodecZstd byte = 0x01

	// blobCompressionThreshold is the chunk length at or above which
	// WriteBlobChunk compresses instead of storing the chunk raw.
	blobCompressionThreshold = 4096
)

var (
	blobEncoder *zstd.Encoder
	blobDecoder *zstd.Decoder
)

func init() {
	var err error
	blobEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("postgres: init zstd encoder: %v", err))
	}
	blobDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("postgres: init zstd decoder: %v", err))
	}
}

// encodeBlobData prepends a one-byte codec tag ahead of data,
// compressing with zstd whenever data is at least
// blobCompressionThreshold bytes long.
func encodeBlobData(data []byte) []byte {
	if len(data) < blobCompressionThreshold {
		out := make([]byte, 0, len(data)+1)
		out = append(out, blobCodecRaw)
		return append(out, data...)
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, blobCodecZstd)
	return blobEncoder.EncodeAll(data, out)
}

// DecodeBlobData strips the codec tag written by encodeBlobData,
// decompressing when it marks zstd. Exported so callers of the raw
// ReadBlobChunks stream can decode chunks themselves; a leading byte
// that isn't a recognized tag is treated as a legacy, untagged row
// written before this engine compressed chunks, and returned as-is.
func DecodeBlobData(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	switch data[0] {
	case blobCodecZstd:
		out, err := blobDecoder.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("postgres: decode zstd blob chunk: %w", err)
		}
		return out, nil
	case blobCodecRaw:
		return data[1:], nil
	default:
		return data, nil
	}
}
