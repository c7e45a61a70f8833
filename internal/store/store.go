package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/conductor-dev/conductor/internal/common/logger"
	conductordb "github.com/conductor-dev/conductor/internal/db"
)

// Store is the persistence layer for repos and workspaces. It holds a
// single writer connection (SQLite allows only one writer at a time) and a
// small reader pool for concurrent list/resolve queries, mirroring the
// split the rest of Conductor uses for its SQLite access.
type Store struct {
	writer *sqlx.DB
	reader *sqlx.DB
	logger *logger.Logger
}

// DefaultHomeDir returns $HOME/conductor, Conductor's default data
// directory.
func DefaultHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "conductor")
	}
	return "conductor"
}

// DBPath returns the database file path under a given home directory.
func DBPath(home string) string {
	return filepath.Join(home, "conductor.db")
}

// EnsureHomeDirs creates the repos/ and workspaces/ directories under home.
func EnsureHomeDirs(home string) error {
	if err := os.MkdirAll(filepath.Join(home, "repos"), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(home, "workspaces"), 0o755)
}

// Connect opens (creating if necessary) the store database at dbPath and
// brings its schema up to date. opts tunes the busy timeout and the size
// of the read-only connection pool.
func Connect(ctx context.Context, dbPath string, opts conductordb.Options, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Default()
	}

	writerSQL, err := conductordb.OpenWriter(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("open store database: %w", err)
	}

	if err := migrate(ctx, writerSQL); err != nil {
		writerSQL.Close()
		return nil, fmt.Errorf("migrate store database: %w", err)
	}

	readerSQL, err := conductordb.OpenReader(dbPath, opts)
	if err != nil {
		writerSQL.Close()
		return nil, fmt.Errorf("open store reader pool: %w", err)
	}

	return &Store{
		writer: sqlx.NewDb(writerSQL, "sqlite3"),
		reader: sqlx.NewDb(readerSQL, "sqlite3"),
		logger: log.WithFields(zap.String("component", "store")),
	}, nil
}

// Close releases the writer and reader connection pools.
func (s *Store) Close() error {
	werr := s.writer.Close()
	rerr := s.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// migrate implements Conductor's forward-only schema migration: read the
// version once cheaply, then re-check it after acquiring an IMMEDIATE
// write lock in case a concurrently-starting process already migrated the
// database.
func migrate(ctx context.Context, db *sql.DB) error {
	version, err := readSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if version == schemaVersion {
		return nil
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin immediate transaction: %w", err)
	}

	version, err = readSchemaVersionOn(ctx, conn)
	if err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if version == schemaVersion {
		_, err := conn.ExecContext(ctx, "COMMIT")
		return err
	}

	var patch string
	switch version {
	case 0:
		patch = schemaV0
	case 1:
		patch = schemaV1Patch
	default:
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return fmt.Errorf("%w: %d", ErrUnsupportedSchemaVersion, version)
	}

	if _, err := conn.ExecContext(ctx, patch); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return fmt.Errorf("apply schema migration from version %d: %w", version, err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit schema migration: %w", err)
	}
	return nil
}

func readSchemaVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var version int64
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	return version, err
}

func readSchemaVersionOn(ctx context.Context, conn *sql.Conn) (int64, error) {
	var version int64
	err := conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	return version, err
}

// now is a small seam so tests can avoid depending on wall-clock ordering
// if they ever need to; production code always uses time.Now.
func now() time.Time { return time.Now().UTC() }
