package tables

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/Adithya-Monish-Kumar-K/search100/pkg/config"
)

// codec compresses table files on their way to and from disk.
type codec interface {
	extension() string
	encode(data []byte) ([]byte, error)
	decode(data []byte) ([]byte, error)
}

func newCodec(compression string) (codec, error) {
	switch compression {
	case "", config.CompressionNone:
		return plainCodec{}, nil
	case config.CompressionZstd:
		return zstdCodec{}, nil
	case config.CompressionLZ4:
		return lz4Codec{}, nil
	default:
		return nil, fmt.Errorf("unknown table compression %q", compression)
	}
}

type plainCodec struct{}

func (plainCodec) extension() string { return "" }

func (plainCodec) encode(data []byte) ([]byte, error) { return data, nil }

func (plainCodec) decode(data []byte) ([]byte, error) { return data, nil }

type zstdCodec struct{}

func (zstdCodec) extension() string { return ".zst" }

func (zstdCodec) encode(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func (zstdCodec) decode(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing zstd table: %w", err)
	}
	return out, nil
}

type lz4Codec struct{}

func (lz4Codec) extension() string { return ".lz4" }

func (lz4Codec) encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compressing lz4 table: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flushing lz4 table: %w", err)
	}
	return buf.Bytes(), nil
}

func (lz4Codec) decode(data []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("decompressing lz4 table: %w", err)
	}
	return out, nil
}
