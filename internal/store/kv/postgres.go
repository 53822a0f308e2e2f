package kv

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps one jsonb row per collection. The whole snapshot is
// upserted inside a single transaction so readers never observe a torn
// write across collections.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pos_collections (
			name text PRIMARY KEY,
			payload jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) SaveAll(ctx context.Context, collections map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pos_collections (name, payload, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
		`, name, collections[name]); err != nil {
			return fmt.Errorf("postgres save %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres save: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, payload FROM pos_collections`)
	if err != nil {
		return nil, fmt.Errorf("postgres load: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("postgres load: %w", err)
		}
		out[name] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres load: %w", err)
	}
	return out, nil
}
