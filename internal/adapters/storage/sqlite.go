package storage

import (
	"context"
	"database/sql"
	"fmt"

	"plugbot/internal/core/domain"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS acl (
	identity TEXT PRIMARY KEY,
	role     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_acl_role ON acl (role);
`

// SQLite persists the ACL table in a sqlite database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	log.Info().Str("path", path).Msg("acl store opened")

	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context) (map[string]domain.Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity, role FROM acl`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]domain.Role)
	for rows.Next() {
		var identity string
		var role int
		if err := rows.Scan(&identity, &role); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}
		out[identity] = domain.Role(role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	return out, nil
}

func (s *SQLite) Set(ctx context.Context, identity string, role domain.Role) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO acl (identity, role) VALUES (?, ?)
		 ON CONFLICT (identity) DO UPDATE SET role = excluded.role`,
		identity, int(role))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	return nil
}

func (s *SQLite) Delete(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM acl WHERE identity = ?`, identity)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
