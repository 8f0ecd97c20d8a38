// Package postgres stores the ledger in PostgreSQL for kiosks that run a
// local database server instead of the SQLite file.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jipraks/kasirgratisan/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const versionKey = "schema_version"

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Version(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = $1`, versionKey).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *Store) SetVersion(ctx context.Context, version int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_meta (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, versionKey, version)
	return err
}

func (s *Store) Get(ctx context.Context, c store.Collection, id int64) (json.RawMessage, error) {
	table, err := c.Table()
	if err != nil {
		return nil, err
	}
	var doc []byte
	err = s.db.QueryRowContext(ctx, `SELECT doc FROM `+table+` WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
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
		return nil, err
	}
	defer rows.Close()

	records := make([]store.Record, 0, 128)
	for rows.Next() {
		var rec store.Record
		var doc []byte
		if err := rows.Scan(&rec.ID, &doc); err != nil {
			return nil, err
		}
		rec.Doc = json.RawMessage(doc)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context, c store.Collection) (int, error) {
	table, err := c.Table()
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	return n, err
}

// Add takes the next sequence value. A unique violation means the sequence
// fell behind explicitly keyed rows; it is resynced and the insert retried once.
func (s *Store) Add(ctx context.Context, c store.Collection, doc json.RawMessage) (int64, error) {
	table, err := c.Table()
	if err != nil {
		return 0, err
	}
	if _, err := store.WithID(doc, 0); err != nil {
		return 0, err
	}

	id, err := s.insertNext(ctx, table, doc)
	if err != nil && isUniqueViolation(err) {
		if syncErr := resyncSequence(ctx, s.db, table); syncErr != nil {
			return 0, syncErr
		}
		id, err = s.insertNext(ctx, table, doc)
	}
	if err != nil {
		return 0, fmt.Errorf("add %s: %w", c, err)
	}
	return id, nil
}

func (s *Store) insertNext(ctx context.Context, table string, doc json.RawMessage) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT nextval(pg_get_serial_sequence($1, 'id'))`, table).Scan(&id); err != nil {
		return 0, err
	}
	stored, err := store.WithID(doc, id)
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO `+table+` (id, doc) VALUES ($1, $2::jsonb)`, id, string(stored)); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) Put(ctx context.Context, c store.Collection, id int64, doc json.RawMessage) error {
	table, err := c.Table()
	if err != nil {
		return err
	}
	if err := upsert(ctx, s.db, table, id, doc); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("put %s/%d: duplicate key: %w", c, id, err)
		}
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, c store.Collection, id int64) error {
	table, err := c.Table()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	return err
}

func (s *Store) Clear(ctx context.Context, c store.Collection) error {
	table, err := c.Table()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM `+table)
	return err
}

func (s *Store) BulkPut(ctx context.Context, c store.Collection, records []store.Record) error {
	table, err := c.Table()
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, rec := range records {
		id := rec.ID
		if id == 0 {
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM `+table).Scan(&id); err != nil {
				return fmt.Errorf("bulk put %s[%d]: %w", c, i, err)
			}
		}
		if err := upsert(ctx, tx, table, id, rec.Doc); err != nil {
			return fmt.Errorf("bulk put %s/%d: %w", c, id, err)
		}
	}
	if err := resyncSequence(ctx, tx, table); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, table string, id int64, doc json.RawMessage) error {
	stored, err := store.WithID(doc, id)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, doc) VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`, id, string(stored))
	return err
}

// resyncSequence moves the id sequence past the highest stored id.
func resyncSequence(ctx context.Context, db execer, table string) error {
	_, err := db.ExecContext(ctx, `
		SELECT setval(pg_get_serial_sequence($1, 'id'), COALESCE((SELECT MAX(id) FROM `+table+`), 0) + 1, false)
	`, table)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
