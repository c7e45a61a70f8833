// Package db opens Conductor's SQLite registry connections. The store
// keeps a single writer connection (SQLite serializes writers anyway) and
// a small read-only pool; with WAL journaling the readers never block on
// the writer, and the busy timeout makes a second writer wait briefly
// instead of failing with SQLITE_BUSY.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultBusyTimeout is how long a connection waits on a locked
	// database before giving up.
	DefaultBusyTimeout = 5 * time.Second

	// DefaultReaderConns sizes the read-only pool for a workstation
	// workload: a couple of list/resolve queries in flight at once.
	DefaultReaderConns = 4
)

// Options tunes the connection DSN beyond its defaults.
type Options struct {
	BusyTimeout time.Duration
	ReaderConns int
}

func (o Options) busyTimeoutMS() int {
	t := o.BusyTimeout
	if t <= 0 {
		t = DefaultBusyTimeout
	}
	return int(t / time.Millisecond)
}

func (o Options) readerConns() int {
	if o.ReaderConns <= 0 {
		return DefaultReaderConns
	}
	return o.ReaderConns
}

// OpenWriter opens (creating if necessary) the registry database for
// writes. The returned handle is pinned to one connection so every write
// and migration shares the same transaction lineage.
func OpenWriter(dbPath string, opts Options) (*sql.DB, error) {
	path, err := preparePath(dbPath)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf(
		"file:%s?_mode=rwc&_foreign_keys=on&_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		path, opts.busyTimeoutMS(),
	)
	handle, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	handle.SetMaxOpenConns(1)
	handle.SetMaxIdleConns(1)
	return handle, nil
}

// OpenReader opens a read-only pool against an existing registry
// database. Journal mode and synchronous level are database-wide and set
// by the writer.
func OpenReader(dbPath string, opts Options) (*sql.DB, error) {
	path, err := absPath(dbPath)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf(
		"file:%s?_mode=ro&_foreign_keys=on&_busy_timeout=%d",
		path, opts.busyTimeoutMS(),
	)
	handle, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open registry reader pool: %w", err)
	}
	conns := opts.readerConns()
	handle.SetMaxOpenConns(conns)
	handle.SetMaxIdleConns(conns)
	return handle, nil
}

// preparePath resolves dbPath to an absolute path and makes sure its
// parent directory and the file itself exist, so the writer DSN's rwc
// mode never races directory creation.
func preparePath(dbPath string) (string, error) {
	path, err := absPath(dbPath)
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create database directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return "", fmt.Errorf("create database file: %w", err)
	}
	return path, f.Close()
}

func absPath(dbPath string) (string, error) {
	if dbPath == "" {
		return "", fmt.Errorf("database path is required")
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return dbPath, nil
	}
	return abs, nil
}
