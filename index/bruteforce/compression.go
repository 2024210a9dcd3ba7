package bruteforce

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how the serialized payload is compressed.
type Compression uint8

const (
	// CompressionZSTD favours ratio; the default.
	CompressionZSTD Compression = iota
	// CompressionLZ4 favours speed.
	CompressionLZ4
	// CompressionNone stores the payload as-is.
	CompressionNone
)

func (c Compression) String() string {
	switch c {
	case CompressionZSTD:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression accepts zstd, lz4 and none (or off), case-insensitive.
// An empty name selects zstd.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "zstd":
		return CompressionZSTD, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none", "off":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("bruteforce: unsupported compression %q", name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// compress returns nil when the payload should be stored uncompressed.
func compress(data []byte, c Compression) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	switch c {
	case CompressionNone:
		return nil, nil
	case CompressionZSTD:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, nil), nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("bruteforce: lz4: %w", err)
		}
		if n == 0 {
			return nil, nil // incompressible
		}
		return buf[:n], nil
	default:
		return nil, fmt.Errorf("bruteforce: unsupported compression %v", c)
	}
}

func decompress(data []byte, c Compression, rawLen int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(data) != rawLen {
			return nil, errors.New("bruteforce: payload size mismatch")
		}
		return data, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("bruteforce: zstd: %w", err)
		}
		if len(out) != rawLen {
			return nil, errors.New("bruteforce: decompressed size mismatch")
		}
		return out, nil
	case CompressionLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("bruteforce: lz4: %w", err)
		}
		if n != rawLen {
			return nil, errors.New("bruteforce: decompressed size mismatch")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("bruteforce: unsupported compression %v", c)
	}
}
