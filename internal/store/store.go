// Package store persists history, collections and environments in SQLite.
//
// Reads go straight to the connection pool. Writes are funnelled through a
// single writer goroutine so concurrent commands never interleave statements.
package store

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

const (
	DefaultHistoryLimit = 15
	writeQueueSize      = 100
)

var ErrClosed = errors.New("store is closed")

type Options struct {
	HistoryLimit int
	Logger       *slog.Logger
}

type Store struct {
	db           *sql.DB
	writes       chan writeOp
	done         chan struct{}
	historyLimit int
	logger       *slog.Logger

	mu     sync.RWMutex
	closed bool
}

type writeOp struct {
	query  string
	args   []any
	result chan writeResult
}

type writeResult struct {
	res sql.Result
	err error
}

// Open opens (creating if needed) the database at path and starts the
// writer.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodePersistence, err, "open database %s", path)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errdef.Wrap(errdef.CodePersistence, err, "configure database")
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Store{
		db:           db,
		writes:       make(chan writeOp, writeQueueSize),
		done:         make(chan struct{}),
		historyLimit: limit,
		logger:       logger,
	}
	go s.writer()
	return s, nil
}

func (s *Store) writer() {
	defer close(s.done)
	for op := range s.writes {
		res, err := s.db.Exec(op.query, op.args...)
		if err != nil {
			s.logger.Debug("write failed", "error", err)
		}
		op.result <- writeResult{res: res, err: err}
	}
}

// exec queues a write and waits for it. The caller's context bounds the
// wait, not the statement itself.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	op := writeOp{query: query, args: args, result: make(chan writeResult, 1)}
	select {
	case s.writes <- op:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-op.result:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close drains queued writes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.writes)
	s.mu.Unlock()

	<-s.done
	if err := s.db.Close(); err != nil {
		return errdef.Wrap(errdef.CodePersistence, err, "close database")
	}
	return nil
}

func (s *Store) HistoryLimit() int {
	return s.historyLimit
}

func migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			requests TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request TEXT,
			response TEXT,
			timestamp TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS environments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			base_url TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at TEXT NOT NULL DEFAULT '',
			auth_url TEXT NOT NULL DEFAULT '',
			token_url TEXT NOT NULL DEFAULT '',
			client_id TEXT NOT NULL DEFAULT '',
			client_secret TEXT NOT NULL DEFAULT '',
			redirect_uri TEXT NOT NULL DEFAULT '',
			scope TEXT NOT NULL DEFAULT '',
			variables TEXT NOT NULL DEFAULT '{}',
			oauth2_config TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_used TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errdef.Wrap(errdef.CodePersistence, err, "create tables")
		}
	}
	return nil
}
