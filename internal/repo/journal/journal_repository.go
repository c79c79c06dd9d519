package journal

import (
	"context"
	"errors"

	"github.com/mkrupp/homecase-imagekv/internal/domain"
)

var (
	// ErrJournalBusy is returned when the database stayed locked past the busy timeout.
	ErrJournalBusy = errors.New("journal busy")

	// ErrUnknownBackend is returned for an unsupported journal backend name.
	ErrUnknownBackend = errors.New("unknown journal backend")
)

// Repository defines the interface for persisting executed commands.
type Repository interface {
	// Record appends an entry. ID and CreatedAt are assigned if zero.
	Record(ctx context.Context, entry *domain.JournalEntry) error

	// ListByKey returns up to limit entries for key, newest first.
	ListByKey(ctx context.Context, key domain.BlobKey, limit int) ([]domain.JournalEntry, error)

	// Close releases any resources held by the repository.
	// Returns an error if cleanup fails.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)

// RepositoryConfig selects and configures the journal backend.
type RepositoryConfig struct {
	// Backend is "sqlite" or "none"
	Backend string                 `env:"BACKEND" default:"sqlite"`
	SQLite  SQLiteRepositoryConfig `envPrefix:"SQLITE_"`
}

// NewRepositoryFactory returns the factory for the configured backend.
func NewRepositoryFactory(cfg RepositoryConfig) (RepositoryFactory, error) {
	switch cfg.Backend {
	case "sqlite":
		return SQLiteRepositoryFactory(cfg.SQLite), nil
	case "none", "":
		return func() (Repository, error) { return NopRepository{}, nil }, nil
	default:
		return nil, ErrUnknownBackend
	}
}

// NopRepository discards every entry.
type NopRepository struct{}

var _ Repository = NopRepository{}

func (NopRepository) Record(context.Context, *domain.JournalEntry) error {
	return nil
}

func (NopRepository) ListByKey(context.Context, domain.BlobKey, int) ([]domain.JournalEntry, error) {
	return []domain.JournalEntry{}, nil
}

func (NopRepository) Close() error {
	return nil
}
