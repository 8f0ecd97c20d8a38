// Package sqlite is the on-device Record Store backend.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jipraks/kasirgratisan/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite file holding one table per collection. The ledger schema
// version is kept in PRAGMA user_version.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and makes sure every collection
// table exists. Ledger migrations are not run here.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Version(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func (s *Store) SetVersion(ctx context.Context, version int) error {
	if version < 0 {
		return fmt.Errorf("invalid schema version %d", version)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, c store.Collection, id int64) (json.RawMessage, error) {
	table, err := c.Table()
	if err != nil {
		return nil, err
	}
	var doc string
	err = s.db.QueryRowContext(ctx, `SELECT doc FROM `+table+` WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%d: %w", c, id, err)
	}
	return json.RawMessage(doc), nil
}

func (s *Store) All(ctx context.Context, c store.Collection) ([]store.Record, error) {
	table, err := c.Table()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	defer rows.Close()

	records := make([]store.Record, 0, 64)
	for rows.Next() {
		var (
			id  int64
			doc string
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c, err)
		}
		records = append(records, store.Record{ID: id, Doc: json.RawMessage(doc)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context, c store.Collection) (int, error) {
	table, err := c.Table()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c, err)
	}
	return n, nil
}

func (s *Store) Add(ctx context.Context, c store.Collection, doc json.RawMessage) (int64, error) {
	table, err := c.Table()
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := insertAuto(ctx, tx, table, doc)
	if err != nil {
		return 0, fmt.Errorf("add %s: %w", c, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("add %s: %w", c, err)
	}
	return id, nil
}

func (s *Store) Put(ctx context.Context, c store.Collection, id int64, doc json.RawMessage) error {
	table, err := c.Table()
	if err != nil {
		return err
	}
	if err := upsert(ctx, s.db, table, id, doc); err != nil {
		return fmt.Errorf("put %s/%d: %w", c, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, c store.Collection, id int64) error {
	table, err := c.Table()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete %s/%d: %w", c, id, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, c store.Collection) error {
	table, err := c.Table()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", c, err)
	}
	return nil
}

// BulkPut writes every record inside one SQLite transaction.
func (s *Store) BulkPut(ctx context.Context, c store.Collection, records []store.Record) error {
	table, err := c.Table()
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, rec := range records {
		if rec.ID == 0 {
			if _, err := insertAuto(ctx, tx, table, rec.Doc); err != nil {
				return fmt.Errorf("bulk put %s[%d]: %w", c, i, err)
			}
			continue
		}
		if err := upsert(ctx, tx, table, rec.ID, rec.Doc); err != nil {
			return fmt.Errorf("bulk put %s/%d: %w", c, rec.ID, err)
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAuto(ctx context.Context, tx *sql.Tx, table string, doc json.RawMessage) (int64, error) {
	if _, err := store.WithID(doc, 0); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO `+table+` (doc) VALUES ('{}')`)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	stored, err := store.WithID(doc, id)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET doc = ? WHERE id = ?`, string(stored), id); err != nil {
		return 0, err
	}
	return id, nil
}

func upsert(ctx context.Context, db execer, table string, id int64, doc json.RawMessage) error {
	stored, err := store.WithID(doc, id)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, doc) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`, id, string(stored))
	return err
}
