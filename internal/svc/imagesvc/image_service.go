package imagesvc

import (
	"context"

	"github.com/mkrupp/homecase-imagekv/internal/domain"
)

// ImageService defines the interface for transforming and managing stored images.
type ImageService interface {
	// Execute parses and runs one command given as its name followed by its arguments.
	// Every invocation yields exactly one reply; failures are error replies.
	Execute(ctx context.Context, args []string) domain.Reply

	// Run executes an already parsed command.
	Run(ctx context.Context, cmd Command) domain.Reply

	// Store writes a blob as-is, replacing any previous value.
	// Returns domain.ErrImageTooLarge if the blob exceeds MaxSize.
	Store(ctx context.Context, blob *domain.Blob) error

	// Fetch returns the blob stored under key.
	Fetch(ctx context.Context, key domain.BlobKey) (*domain.Blob, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key domain.BlobKey) error

	// Journal returns up to limit recorded commands for key, newest first.
	// A limit of zero or less uses the configured default.
	Journal(ctx context.Context, key domain.BlobKey, limit int) ([]domain.JournalEntry, error)

	// MaxSize returns the maximum allowed blob size in bytes.
	MaxSize() int64

	// Close releases the store and the journal.
	Close() error
}
