// Package postgres implements the Directory over a single jsonb table for
// deployments that prefer SQL. The conditional write is a conditional
// UPDATE, so the compare and the set commit together.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jwalitptl/telemed-api/internal/store"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type Store struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS directory_docs (
	parent TEXT NOT NULL,
	name   TEXT NOT NULL,
	doc    JSONB NOT NULL,
	PRIMARY KEY (parent, name)
)`

func New(cfg Config) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, path string, out interface{}) error {
	parent, name := store.Split(path)
	var raw []byte
	err := s.db.GetContext(ctx, &raw,
		`SELECT doc FROM directory_docs WHERE parent = $1 AND name = $2`, parent, name)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return unavailable(err)
	}
	return json.Unmarshal(raw, out)
}

func (s *Store) GetAll(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT name, doc FROM directory_docs WHERE parent = $1`, path)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var name string
		var raw []byte
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, unavailable(err)
		}
		out[name] = json.RawMessage(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	parent, name := store.Split(path)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO directory_docs (parent, name, doc) VALUES ($1, $2, $3)
		ON CONFLICT (parent, name) DO UPDATE SET doc = EXCLUDED.doc`,
		parent, name, raw)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) SetAll(ctx context.Context, path string, values map[string]interface{}) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM directory_docs WHERE parent = $1`, path); err != nil {
		return unavailable(err)
	}
	for name, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO directory_docs (parent, name, doc) VALUES ($1, $2, $3)`,
			path, name, raw); err != nil {
			return unavailable(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	parent, name := store.Split(path)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO directory_docs (parent, name, doc) VALUES ($1, $2, $3)
		ON CONFLICT (parent, name) DO UPDATE SET doc = directory_docs.doc || EXCLUDED.doc`,
		parent, name, raw)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	parent, name := store.Split(path)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM directory_docs WHERE parent = $1 AND name = $2`, parent, name)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) CompareAndSet(ctx context.Context, path string, expect, value interface{}) (bool, error) {
	expectRaw, err := json.Marshal(expect)
	if err != nil {
		return false, err
	}
	valueRaw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	parent, name := store.Split(path)
	res, err := s.db.ExecContext(ctx, `
		UPDATE directory_docs SET doc = $4
		WHERE parent = $1 AND name = $2 AND doc = $3::jsonb`,
		parent, name, expectRaw, valueRaw)
	if err != nil {
		return false, unavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(err)
	}
	return affected == 1, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
