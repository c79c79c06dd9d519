package domain

import "errors"

// ErrNoKey is returned when a key is required but not provided.
var ErrNoKey = errors.New("no key")

// BlobKey identifies a value in the keyed blob store.
type BlobKey string

// String returns the string representation of the BlobKey.
func (key BlobKey) String() string {
	return string(key)
}
