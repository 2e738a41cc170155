// Package sqlite provides a SQLite-backed asset document store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/vanshika/supplytrace/internal/domain"
	"github.com/vanshika/supplytrace/internal/registry"
	"github.com/vanshika/supplytrace/internal/storage/sqlite/migrations"
)

// Store persists asset documents in a single SQLite table.
type Store struct {
	sqlDB *sql.DB
	nowFn func() time.Time
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Writers are serialized by the ledger.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, nowFn: time.Now}, nil
}

func (s *Store) Begin(ctx context.Context) (registry.Tx, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sqlite tx: %w", err)
	}
	return &Tx{tx: tx, nowFn: s.nowFn}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the SQLite handle.
func (s *Store) Close(context.Context) error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Tx is one SQLite transaction over the assets table.
type Tx struct {
	tx    *sql.Tx
	nowFn func() time.Time
}

func (t *Tx) Insert(ctx context.Context, kind, id string, body []byte) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO assets (kind, id, body, updated_at) VALUES (?, ?, ?, ?)`,
		kind, id, string(body), t.nowFn().UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.DuplicateAssetError{Kind: kind, ID: id}
		}
		return fmt.Errorf("insert %s %s: %w", kind, id, mapTxErr(err))
	}
	return nil
}

func (t *Tx) Replace(ctx context.Context, kind, id string, body []byte) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE assets SET body = ?, updated_at = ? WHERE kind = ? AND id = ?`,
		string(body), t.nowFn().UTC().UnixMilli(), kind, id,
	)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", kind, id, mapTxErr(err))
	}
	return requireRow(res, kind, id)
}

func (t *Tx) Fetch(ctx context.Context, kind, id string) ([]byte, error) {
	var body string
	err := t.tx.QueryRowContext(ctx, `SELECT body FROM assets WHERE kind = ? AND id = ?`, kind, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: kind, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, mapTxErr(err))
	}
	return []byte(body), nil
}

func (t *Tx) Remove(ctx context.Context, kind, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM assets WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, mapTxErr(err))
	}
	return requireRow(res, kind, id)
}

func (t *Tx) Exists(ctx context.Context, kind, id string) (bool, error) {
	var found int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM assets WHERE kind = ? AND id = ?`, kind, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s %s: %w", kind, id, mapTxErr(err))
	}
	return true, nil
}

func (t *Tx) List(ctx context.Context, kind string) ([][]byte, error) {
	return t.query(ctx, `SELECT body FROM assets WHERE kind = ? ORDER BY id`, kind)
}

// OwnedBy lists commodity documents whose owner is the given reference.
func (t *Tx) OwnedBy(ctx context.Context, owner domain.Ref) ([][]byte, error) {
	return t.query(ctx,
		`SELECT body FROM assets WHERE kind = ? AND json_extract(body, '$.owner') = ? ORDER BY id`,
		domain.KindCommodity, owner.String(),
	)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) ([][]byte, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", mapTxErr(err))
	}
	defer rows.Close()

	var bodies [][]byte
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		bodies = append(bodies, []byte(body))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return bodies, nil
}

func (t *Tx) Commit(context.Context) error {
	return mapTxErr(t.tx.Commit())
}

func (t *Tx) Rollback(context.Context) error {
	return mapTxErr(t.tx.Rollback())
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func mapTxErr(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return registry.ErrTxDone
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
