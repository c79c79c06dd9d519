package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/homecase-imagekv/internal/domain"
	"github.com/mkrupp/homecase-imagekv/internal/infra/logging"
)

// SQLiteRepositoryConfig holds configuration for the SQLite journal.
type SQLiteRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/journal.db"`
}

// SQLiteRepository implements Repository using SQLite as the storage backend.
type SQLiteRepository struct {
	db        *sqlx.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepositoryFactory creates a factory function that returns a new SQLiteRepository.
// The factory function implements the RepositoryFactory type.
func SQLiteRepositoryFactory(cfg SQLiteRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteRepository(cfg)
	}
}

// NewSQLiteRepository creates a new SQLiteRepository with the given configuration.
// It initializes the database connection and creates the schema if needed.
func NewSQLiteRepository(cfg SQLiteRepositoryConfig) (*SQLiteRepository, error) {
	log := logging.GetLogger("repo.journal.sqlite_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	// modernc registers as "sqlite", which sqlx does not know
	sqlx.BindDriver("sqlite", sqlx.QUESTION)

	db, err := sqlx.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := initializeDB(db); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	return &SQLiteRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

// journalRow is the stored form of a domain.JournalEntry. Args are kept as a JSON array.
type journalRow struct {
	ID         int64  `db:"id"`
	TraceID    string `db:"trace_id"`
	Key        string `db:"blob_key"`
	Command    string `db:"command"`
	Args       string `db:"args"`
	Outcome    string `db:"outcome"`
	Reply      string `db:"reply"`
	DurationUS int64  `db:"duration_us"`
	CreatedAt  int64  `db:"created_at"`
}

func newJournalRow(entry *domain.JournalEntry) (journalRow, error) {
	args := entry.Args
	if args == nil {
		args = []string{}
	}

	encodedArgs, err := json.Marshal(args)
	if err != nil {
		return journalRow{}, fmt.Errorf("marshal args: %w", err)
	}

	return journalRow{
		ID:         entry.ID,
		TraceID:    entry.TraceID,
		Key:        string(entry.Key),
		Command:    entry.Command,
		Args:       string(encodedArgs),
		Outcome:    entry.Outcome,
		Reply:      entry.Reply,
		DurationUS: entry.Duration,
		CreatedAt:  entry.CreatedAt,
	}, nil
}

func (row journalRow) entry() (domain.JournalEntry, error) {
	entry := domain.JournalEntry{
		ID:        row.ID,
		TraceID:   row.TraceID,
		Key:       domain.BlobKey(row.Key),
		Command:   row.Command,
		Args:      nil,
		Outcome:   row.Outcome,
		Reply:     row.Reply,
		Duration:  row.DurationUS,
		CreatedAt: row.CreatedAt,
	}

	if err := json.Unmarshal([]byte(row.Args), &entry.Args); err != nil {
		return entry, fmt.Errorf("unmarshal args: %w", err)
	}

	return entry, nil
}

func initializeDB(db *sqlx.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id    TEXT    NOT NULL,
			blob_key    TEXT    NOT NULL,
			command     TEXT    NOT NULL,
			args        TEXT    NOT NULL,
			outcome     TEXT    NOT NULL,
			reply       TEXT    NOT NULL,
			duration_us INTEGER NOT NULL,
			created_at  INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := db.Exec(
		"CREATE INDEX IF NOT EXISTS journal_blob_key ON journal (blob_key, id)",
	); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	return nil
}

// Record implements Repository.Record using SQLite.
func (r *SQLiteRepository) Record(ctx context.Context, entry *domain.JournalEntry) (err error) {
	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "journal record failed", "error", err, "command", entry.Command)
		}
	}()

	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}

	row, err := newJournalRow(entry)
	if err != nil {
		return err
	}

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.NamedExecContext(ctx,
		`INSERT INTO journal (trace_id, blob_key, command, args, outcome, reply, duration_us, created_at)
		 VALUES (:trace_id, :blob_key, :command, :args, :outcome, :reply, :duration_us, :created_at)`,
		row,
	)
	if err != nil {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_BUSY {
			err = errors.Join(ErrJournalBusy, err)
		}

		return fmt.Errorf("insert entry: %w", err)
	}

	if entry.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	return nil
}

// ListByKey implements Repository.ListByKey using SQLite.
func (r *SQLiteRepository) ListByKey(
	ctx context.Context,
	key domain.BlobKey,
	limit int,
) ([]domain.JournalEntry, error) {
	var rows []journalRow

	if err := r.db.SelectContext(ctx, &rows,
		`SELECT id, trace_id, blob_key, command, args, outcome, reply, duration_us, created_at
		 FROM journal WHERE blob_key = ? ORDER BY id DESC LIMIT ?`,
		string(key),
		limit,
	); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	entries := make([]domain.JournalEntry, 0, len(rows))

	for _, row := range rows {
		entry, err := row.entry()
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
