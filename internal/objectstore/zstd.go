package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/loqalabs/loqa-speech/internal/speech"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Compressed zstd-compresses objects on the way into the wrapped store.
// Objects written before compression was enabled are returned unchanged.
type Compressed struct {
	inner speech.ObjectStore
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// NewCompressed wraps inner.
func NewCompressed(inner speech.ObjectStore) (*Compressed, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Compressed{inner: inner, enc: enc, dec: dec}, nil
}

// Put implements speech.ObjectStore.
func (c *Compressed) Put(ctx context.Context, name string, data []byte) error {
	return c.inner.Put(ctx, name, c.enc.EncodeAll(data, make([]byte, 0, len(data))))
}

// Get implements speech.ObjectStore.
func (c *Compressed) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := c.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	return out, nil
}

// Delete implements speech.ObjectStore.
func (c *Compressed) Delete(ctx context.Context, name string) error {
	return c.inner.Delete(ctx, name)
}

// Close releases the codec and the wrapped store.
func (c *Compressed) Close() error {
	c.enc.Close()
	c.dec.Close()
	return c.inner.Close()
}
