package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
)

// zstd keeps long-lived coder state; one shared pair serves all pipelines.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
)

// Compress transforms b with the given codec. The None codec returns b
// unchanged without copying.
func Compress(id CompressionID, b []byte) ([]byte, error) {
	switch id {
	case CompressionNone:
		return b, nil

	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(b); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CompressionDeflate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(b); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CompressionBrotli:
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(b); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(b); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CompressionZstd:
		return zstdEncoder.EncodeAll(b, nil), nil

	case CompressionSnappy:
		return snappy.Encode(nil, b), nil

	case CompressionLZMA:
		var buf bytes.Buffer
		w, err := lzma.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(b); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unknown compression id %d", id)
	}
}

// Decompress reverses Compress.
func Decompress(id CompressionID, b []byte) ([]byte, error) {
	switch id {
	case CompressionNone:
		return b, nil

	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)

	case CompressionDeflate:
		r := flate.NewReader(bytes.NewReader(b))
		defer r.Close()
		return io.ReadAll(r)

	case CompressionBrotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(b)))

	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(b)))

	case CompressionZstd:
		return zstdDecoder.DecodeAll(b, nil)

	case CompressionSnappy:
		return snappy.Decode(nil, b)

	case CompressionLZMA:
		r, err := lzma.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		return io.ReadAll(r)

	default:
		return nil, fmt.Errorf("unknown compression id %d", id)
	}
}
