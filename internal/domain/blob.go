package domain

import (
	"fmt"
	"io"
)

// Blob is the raw value stored under a key. Its bytes are opaque until decoded.
type Blob struct {
	Key  BlobKey
	data []byte
}

// NewBlob creates a Blob holding data. data is not copied.
func NewBlob(key BlobKey, data []byte) *Blob {
	return &Blob{Key: key, data: data}
}

// Size returns the length of the value in bytes.
func (blob *Blob) Size() int64 {
	return int64(len(blob.data))
}

// Bytes returns the value. The slice is shared with the Blob.
func (blob *Blob) Bytes() []byte {
	return blob.data
}

// Validate checks that the blob has a key and holds at most maxSize bytes.
// A maxSize of zero or less disables the size check.
func (blob *Blob) Validate(maxSize int64) error {
	if blob.Key == "" {
		return ErrNoKey
	}

	if maxSize > 0 && blob.Size() > maxSize {
		return fmt.Errorf("%w: %d > %d bytes", ErrImageTooLarge, blob.Size(), maxSize)
	}

	return nil
}

// WriteTo implements io.WriterTo.
func (blob *Blob) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(blob.data)
	if err != nil {
		return int64(n), fmt.Errorf("write: %w", err)
	}

	return int64(n), nil
}

// ReadFrom implements io.ReaderFrom, replacing the value with everything read from r.
func (blob *Blob) ReadFrom(r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read all: %w", err)
	}

	blob.data = data

	return int64(len(data)), nil
}
