package diskcache

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
)

// Codec is an optional transform applied to an entry's body bytes before
// they are written to disk, and reversed after they are read back. It is a
// storage-efficiency enrichment (§ SPEC_FULL "DOMAIN STACK"); the spec's
// on-disk body framing ("body bytes to end-of-file") doesn't care whether
// those bytes happen to be compressed.
type Codec interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// GzipCodec compresses bodies with compress/gzip.
type GzipCodec struct{ Level int }

func NewGzipCodec(level int) *GzipCodec {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return &GzipCodec{Level: level}
}

func (c *GzipCodec) Name() string { return "gzip" }

func (c *GzipCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.Level)
	if err != nil {
		return nil, fmt.Errorf("diskcache: gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("diskcache: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("diskcache: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *GzipCodec) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("diskcache: gzip reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("diskcache: gzip read: %w", err)
	}
	return out, nil
}

// BrotliCodec compresses bodies with github.com/andybalholm/brotli.
type BrotliCodec struct{ Quality int }

func NewBrotliCodec(quality int) *BrotliCodec {
	if quality == 0 {
		quality = brotli.DefaultCompression
	}
	return &BrotliCodec{Quality: quality}
}

func (c *BrotliCodec) Name() string { return "brotli" }

func (c *BrotliCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.Quality)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("diskcache: brotli write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("diskcache: brotli close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *BrotliCodec) Decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("diskcache: brotli read: %w", err)
	}
	return out, nil
}

// SnappyCodec compresses bodies with github.com/golang/snappy. Fastest of
// the three, lowest ratio.
type SnappyCodec struct{}

func NewSnappyCodec() *SnappyCodec { return &SnappyCodec{} }

func (c *SnappyCodec) Name() string { return "snappy" }

func (c *SnappyCodec) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (c *SnappyCodec) Decompress(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("diskcache: snappy decode: %w", err)
	}
	return out, nil
}
