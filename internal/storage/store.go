// Package storage is the ledger store: accounts, budget categories, periods,
// purchases and transfers persisted in SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect selects placeholder style, row locking and migrations.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// driverName is the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs ledger statements against either the pool or an open
// transaction. Queries obtained inside WithTx must not be used after the
// callback returns.
type Queries struct {
	db      querier
	dialect Dialect
	now     func() time.Time
}

// Store owns the connection pool. It is created once at process start and
// handed to the services that need it.
type Store struct {
	*Queries
	db      *sql.DB
	dialect Dialect
}

// sqliteDSN enables foreign keys, waits on locks instead of failing fast,
// opens write transactions with BEGIN IMMEDIATE and writes times in a
// sortable text layout.
func sqliteDSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)&_txlock=immediate&_time_format=sqlite"
}

// NewSQLiteStore opens (creating if needed) the SQLite database at dbPath and
// applies pending migrations.
func NewSQLiteStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open(SQLite.driverName(), sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, mapError("ping database", err)
	}

	if err := RunSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite store ready", "path", dbPath)
	return newStore(db, SQLite), nil
}

// NewPostgresStore connects to PostgreSQL through pgx and applies pending
// migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(Postgres.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, mapError("ping database", err)
	}

	if err := RunPostgresMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "Postgres store ready")
	return newStore(db, Postgres), nil
}

func newStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		Queries: &Queries{db: db, dialect: dialect, now: time.Now},
		db:      db,
		dialect: dialect,
	}
}

// SetClock replaces the clock used for created_at and rebased_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.Queries.now = now
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return mapError("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// WithTx runs fn inside one database transaction. The transaction commits
// only when fn returns nil; any error or panic rolls it back.
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin transaction", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
	}()

	if err := fn(&Queries{db: tx, dialect: s.dialect, now: s.Queries.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError("commit transaction", err)
	}
	committed = true
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL. Statements in this
// package never contain literal question marks.
func (q *Queries) rebind(query string) string {
	if q.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate locks selected rows on PostgreSQL. SQLite write transactions
// already hold the database write lock.
func (q *Queries) forUpdate() string {
	if q.dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

func (q *Queries) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	res, err := q.db.ExecContext(ctx, q.rebind(query), args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	return res, nil
}

func (q *Queries) query(ctx context.Context, op, query string, args ...any) (*sql.Rows, error) {
	rows, err := q.db.QueryContext(ctx, q.rebind(query), args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	return rows, nil
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement.
func (q *Queries) insert(ctx context.Context, op, query string, args ...any) (int64, error) {
	var id int64
	if err := q.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, mapError(op, err)
	}
	return id, nil
}

// stamp is the current time as stored: UTC, whole seconds.
func (q *Queries) stamp() time.Time {
	return timestamp(q.now())
}

func timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// expectOne turns a zero-row update into a NotFoundError.
func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

type scanner interface {
	Scan(dest ...any) error
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

// dbTime scans timestamp and date columns. SQLite may hand back text
// instead of time.Time depending on how the value was written.
type dbTime struct {
	Time  time.Time
	Valid bool
}

var dbTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.DateOnly,
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime{}
		return nil
	case time.Time:
		*t = dbTime{Time: v.UTC(), Valid: true}
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range dbTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = dbTime{Time: parsed.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("unrecognised time value %q", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
