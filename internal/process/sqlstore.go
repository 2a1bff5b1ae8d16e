package process

import (
	"context"
	"database/sql"
	"fmt"

	// Drivers for the two SQL-backed memory-process stores. The postgres
	// path goes through pgx's database/sql adapter so both backends share
	// one query layer.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects placeholder and upsert syntax for a SQLStore.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// SQLStore persists a memory process's KV pairs in one table, shared
// between the sqlite and postgres backends.
type SQLStore struct {
	db      *sql.DB
	table   string
	dialect Dialect
}

// NewSQLiteStore opens (or creates) an on-disk sqlite database, the
// default durable backend for memory processes.
func NewSQLiteStore(path, table string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %s: %w", path, err)
	}
	return initSQLStore(db, table, DialectSQLite)
}

// NewPostgresStore connects to Postgres through pgx's stdlib driver.
func NewPostgresStore(dsn, table string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	return initSQLStore(db, table, DialectPostgres)
}

// NewSQLStoreFromDB wraps an existing connection without creating the
// table; tests inject a mocked *sql.DB here.
func NewSQLStoreFromDB(db *sql.DB, table string, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, table: table, dialect: dialect}
}

func initSQLStore(db *sql.DB, table string, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, table: table, dialect: dialect}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (k TEXT PRIMARY KEY, v TEXT NOT NULL)", table)
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return s, nil
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	q := fmt.Sprintf("SELECT v FROM %s WHERE k = %s", s.table, s.placeholder(1))
	var v string
	err := s.db.QueryRowContext(ctx, q, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	q := fmt.Sprintf(
		"INSERT INTO %s (k, v) VALUES (%s, %s) ON CONFLICT (k) DO UPDATE SET v = %s",
		s.table, s.placeholder(1), s.placeholder(2), s.placeholder(3))
	_, err := s.db.ExecContext(ctx, q, key, value, value)
	return err
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE k = %s", s.table, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, q, key)
	return err
}

func (s *SQLStore) Keys(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("SELECT k FROM %s ORDER BY k", s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM "+s.table)
	return err
}

func (s *SQLStore) Close() error { return s.db.Close() }
