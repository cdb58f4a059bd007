// Package sqlite implements the repository interfaces on top of SQLite.
//
// The driver is modernc.org/sqlite, a pure Go translation of SQLite, registered
// with database/sql under the name "sqlite" by the blank import below.
//
// DATABASE/SQL RECAP:
//   - sql.DB   is a connection pool, not a single connection
//   - sql.Row  is a single result row (Scan returns sql.ErrNoRows when empty)
//   - sql.Rows must always be closed
//
// Each request borrows a connection from the pool for the duration of one
// statement and hands it back; nothing here keeps per-request state.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/sakif/userbase/internal/apperror"
	"github.com/sakif/userbase/internal/repository/sqlite/migrations"
)

// pragmas are applied by the driver to EVERY connection the pool opens.
//
// Running "PRAGMA foreign_keys=ON" once through conn.Exec would only reach
// whichever pooled connection happened to serve that statement, so the
// settings live in the DSN instead.
var pragmas = []string{
	"foreign_keys(1)",    // enforce profiles.account_id -> accounts.id (ON DELETE CASCADE)
	"journal_mode(WAL)",  // readers do not block the single writer
	"busy_timeout(5000)", // wait up to 5s for the write lock instead of failing with SQLITE_BUSY
}

// DB wraps a sql.DB connection pool and vends the repositories.
type DB struct {
	conn   *sql.DB
	path   string
	logger *slog.Logger
}

// New opens (creating if needed) the SQLite database at path and verifies that
// it is reachable. It does NOT create tables; call EnsureSchema for that.
//
// Any failure here is reported as apperror.ErrUnavailable: the process cannot
// serve traffic without its store.
func New(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		// 0755 = owner rwx, everyone else r-x
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperror.Unavailable("sqlite: creating database directory", err)
		}
	}

	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, apperror.Unavailable("sqlite: opening database", err)
	}

	// sql.Open is lazy; Ping forces the first real connection so a bad path or
	// a permissions problem surfaces now rather than on the first request.
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, apperror.Unavailable("sqlite: pinging database", err)
	}

	return &DB{conn: conn, path: path, logger: logger}, nil
}

// dsn builds a modernc.org/sqlite connection string:
//
//	file:data/users.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&...
//
// The path is percent-encoded one element at a time, so '?', '#' or '%' in
// a directory or file name stay part of the path (SQLite decodes %HH in URI
// filenames) instead of starting the query or fragment.
func dsn(path string) string {
	elems := strings.Split(filepath.ToSlash(path), "/")
	for i, e := range elems {
		elems[i] = url.PathEscape(e)
	}

	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + strings.Join(elems, "/") + "?" + q.Encode()
}

// EnsureSchema creates the accounts and profiles tables if they do not exist.
//
// The migrations are embedded in the binary (see migrations/) and applied by
// goose, which records applied versions in goose_db_version. Running it on
// every start is safe: already-applied versions are skipped, and the
// statements themselves use IF NOT EXISTS so a database created by hand is
// adopted rather than rejected.
func (db *DB) EnsureSchema(ctx context.Context) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.conn, migrations.FS)
	if err != nil {
		return apperror.Unavailable("sqlite: loading migrations", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return apperror.Unavailable("sqlite: applying migrations", err)
	}

	for _, r := range results {
		db.logger.Info("migration applied",
			slog.Int64("version", r.Source.Version),
			slog.String("file", filepath.Base(r.Source.Path)),
			slog.Duration("duration", r.Duration),
		)
	}

	return nil
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return apperror.Unavailable("sqlite: pinging database", err)
	}
	return nil
}

// Path returns the filesystem path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// Close closes the connection pool. Wherever you call New, defer Close.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Accounts returns the account repository backed by this database.
func (db *DB) Accounts() *AccountStore {
	return &AccountStore{conn: db.conn}
}

// Profiles returns the profile repository backed by this database.
func (db *DB) Profiles() *ProfileStore {
	return &ProfileStore{conn: db.conn}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// constraintCode extracts the extended SQLite result code from a driver error,
// or 0 if err did not come from SQLite.
func constraintCode(err error) int {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	switch constraintCode(err) {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if constraintCode(err) == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

// nullString maps "" to SQL NULL for the nullable profile columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// wrapQueryErr turns sql.ErrNoRows into apperror.NotFound and annotates
// everything else with the operation that failed.
func wrapQueryErr(err error, resource, key, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(resource, key)
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}
