package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic is the frame magic number 0xFD2FB528 stored little-endian
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// IsCompressed reports whether data starts with a zstd frame
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// Decompress decompresses zstd-compressed data
func Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}

// Compress compresses data using zstd
func Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// decodingReader closes both the zstd stream and its source
type decodingReader struct {
	io.Reader
	decoder *zstd.Decoder
	src     io.Closer
}

func (r *decodingReader) Close() error {
	if r.decoder != nil {
		r.decoder.Close()
	}
	return r.src.Close()
}

// OpenStream opens a forward-only stream and transparently decodes zstd content
func OpenStream(ctx context.Context, s Storage, name string) (io.ReadCloser, error) {
	rc, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(rc)
	magic, _ := br.Peek(len(zstdMagic))
	if !IsCompressed(magic) {
		return &decodingReader{Reader: br, src: rc}, nil
	}

	decoder, err := zstd.NewReader(br)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder for %s: %w", name, err)
	}
	return &decodingReader{Reader: decoder, decoder: decoder, src: rc}, nil
}

// memFile is a File backed by decoded bytes
type memFile struct {
	*bytes.Reader
}

func (f memFile) Close() error {
	return nil
}

// NewMemFile wraps in-memory content as a File
func NewMemFile(data []byte) File {
	return memFile{bytes.NewReader(data)}
}

// OpenRandomAccess opens a random access view. zstd content is decoded into
// memory first so byte offsets refer to the decoded text.
func OpenRandomAccess(ctx context.Context, s Storage, name string) (File, error) {
	f, err := s.OpenFile(ctx, name)
	if err != nil {
		return nil, err
	}

	magic := make([]byte, len(zstdMagic))
	if n, _ := f.ReadAt(magic, 0); n < len(magic) || !IsCompressed(magic) {
		return f, nil
	}
	f.Close()

	raw, err := s.ReadFile(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	data, err := Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", name, err)
	}
	return NewMemFile(data), nil
}
