package persist

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/schema"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DefaultPollInterval is how often SQLiteStore.Watch checks for new revisions.
const DefaultPollInterval = time.Second

// SQLiteStore keeps documents in a sqlite database.
type SQLiteStore struct {
	db           *sql.DB
	path         string
	pollInterval time.Duration
	log          pslog.Logger
}

// SQLiteOptions configures OpenSQLite.
type SQLiteOptions struct {
	PollInterval time.Duration
	Logger       pslog.Logger
}

// OpenSQLite migrates and opens the database at path.
func OpenSQLite(path string, opts SQLiteOptions) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	logger = logger.With("sqlite_path", path)
	if err := migrateSQLite(path, logger); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &SQLiteStore{db: db, path: path, pollInterval: poll, log: logger}, nil
}

// MigrateSQLite applies pending schema migrations without keeping the database open.
func MigrateSQLite(path string, logger pslog.Logger) error {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return migrateSQLite(path, logger)
}

func migrateSQLite(path string, logger pslog.Logger) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+path)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err == nil {
		logger.Debug("sqlite schema ready", "version", version, "dirty", dirty)
	}
	return nil
}

// Get reads the document for id.
func (s *SQLiteStore) Get(ctx context.Context, id schema.IdentityID) (Document, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE identity = ?`, string(id)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	doc, err := DecodeDocument([]byte(body))
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

// Put replaces the document for id and bumps its revision.
func (s *SQLiteStore) Put(ctx context.Context, id schema.IdentityID, doc Document) error {
	body, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (identity, body, revision, updated_at, writer)
VALUES (?, ?, 1, ?, ?)
ON CONFLICT(identity) DO UPDATE SET
    body = excluded.body,
    revision = documents.revision + 1,
    updated_at = excluded.updated_at,
    writer = excluded.writer`,
		string(id), string(body), doc.LastUpdated.UTC().Format(time.RFC3339Nano), doc.Writer)
	if err != nil {
		return err
	}
	s.log.Trace("sqlite save ok", "identity", id, "tabs", len(doc.Tabs))
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) revision(ctx context.Context, id schema.IdentityID) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM documents WHERE identity = ?`, string(id)).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}

// Watch polls the revision of id and calls fn when it moves.
func (s *SQLiteStore) Watch(ctx context.Context, id schema.IdentityID, fn func(Document)) (func(), error) {
	last, err := s.revision(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			rev, err := s.revision(ctx, id)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("sqlite watch failed", "identity", id, "err", err)
				}
				continue
			}
			if rev == last {
				continue
			}
			last = rev
			doc, ok, err := s.Get(ctx, id)
			if err != nil || !ok {
				continue
			}
			fn(doc)
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}
