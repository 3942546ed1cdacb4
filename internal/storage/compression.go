package storage

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures compression behavior
type CompressionOptions struct {
	// Minimum size in bytes before compressing
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
}

// DefaultCompressionOptions provides sensible defaults
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 4 * 1024,
		Level:   2,
	}
}

// Compressor compresses stored values with zstd. Values below MinSize are
// stored as is; Decompress tells both kinds apart by the zstd frame magic.
type Compressor struct {
	opts     CompressionOptions
	encoders sync.Pool
	decoders sync.Pool
}

func NewCompressor(opts CompressionOptions) (*Compressor, error) {
	level := zstd.EncoderLevelFromZstd(opts.Level)

	// Validate the options once so pool constructors cannot fail later.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	c := &Compressor{opts: opts}
	c.encoders.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
		return enc
	}
	c.decoders.New = func() interface{} {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}
	c.encoders.Put(enc)
	c.decoders.Put(dec)
	return c, nil
}

// Compress returns content, compressed if it is large enough.
func (c *Compressor) Compress(content []byte) []byte {
	if c == nil || len(content) < c.opts.MinSize {
		return content
	}

	enc := c.encoders.Get().(*zstd.Encoder)
	defer c.encoders.Put(enc)

	return enc.EncodeAll(content, make([]byte, 0, len(content)/2))
}

// Decompress reverses Compress. Uncompressed values are returned unchanged.
func (c *Compressor) Decompress(content []byte) ([]byte, error) {
	if !bytes.HasPrefix(content, zstdMagic) {
		return content, nil
	}
	if c == nil {
		return nil, fmt.Errorf("compressed value but no compressor configured")
	}

	dec := c.decoders.Get().(*zstd.Decoder)
	defer c.decoders.Put(dec)

	out, err := dec.DecodeAll(content, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing value: %w", err)
	}
	return out, nil
}
