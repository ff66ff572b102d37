// Package assetdb is the design-time asset index: a SQLite file mapping
// display names to catalog entries, rebuilt from the manifest by assetctl.
package assetdb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/l1jgo/assetcore/internal/catalog"
	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"
)

//go:embed schema.sql
var schemaSQL string

// Index stores entries in insertion order; FindByName returns the first
// match in that order, same as catalog.ManifestIndex.
type Index struct {
	db *sql.DB
}

// Open creates or opens the index at path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect index: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		schemaSQL,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("prepare index: %w", err)
		}
	}
	return &Index{db: db}, nil
}

func (x *Index) Close() error {
	if x.db == nil {
		return nil
	}
	return x.db.Close()
}

// Rebuild replaces the index contents with entries, in order.
func (x *Index) Rebuild(ctx context.Context, entries []catalog.Entry) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'entries'`); err != nil {
		return fmt.Errorf("reset sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (key, name, kind, record) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.Name == "" {
			e.Name = e.Key
		}
		record, err := yaml.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, e.Key, catalog.NormalizeName(e.Name), e.Kind, string(record)); err != nil {
			return fmt.Errorf("insert %s: %w", e.Key, err)
		}
	}
	return tx.Commit()
}

// FindByName returns the first entry whose display name equals name. An
// empty kind matches any kind.
func (x *Index) FindByName(ctx context.Context, name, kind string) (catalog.Entry, bool, error) {
	q := `SELECT record FROM entries WHERE name = ? ORDER BY seq LIMIT 1`
	args := []any{catalog.NormalizeName(name)}
	if kind != "" {
		q = `SELECT record FROM entries WHERE name = ? AND kind = ? ORDER BY seq LIMIT 1`
		args = append(args, kind)
	}

	var record string
	err := x.db.QueryRowContext(ctx, q, args...).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Entry{}, false, nil
	}
	if err != nil {
		return catalog.Entry{}, false, fmt.Errorf("find %q: %w", name, err)
	}

	var e catalog.Entry
	if err := yaml.Unmarshal([]byte(record), &e); err != nil {
		return catalog.Entry{}, false, fmt.Errorf("decode %q: %w", name, err)
	}
	return e, true, nil
}

func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count index: %w", err)
	}
	return n, nil
}
