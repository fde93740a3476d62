// Package mysqlkv keeps the wallet's key/value data in a MySQL table.
package mysqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open parses dsn with the driver's own parser and pings the server.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}

	s := New(db, log)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql schema: %w", err)
	}
	return s, nil
}

func New(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "mysqlkv").Logger()}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS wasi_kv (
  k          VARCHAR(191) NOT NULL PRIMARY KEY,
  v          LONGBLOB NOT NULL,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) DEFAULT CHARSET=utf8mb4`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.retry(func() error {
		return s.db.QueryRowContext(ctx, "SELECT v FROM wasi_kv WHERE k = ?", key).Scan(&v)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.retry(func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO wasi_kv (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)",
			key, value,
		)
		return err
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.retry(func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM wasi_kv WHERE k = ?", key)
		return err
	})
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := s.retry(func() error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx,
			"SELECT k FROM wasi_kv WHERE LEFT(k, CHAR_LENGTH(?)) = ? ORDER BY k",
			prefix, prefix,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				return err
			}
			out = append(out, k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Close() error { return s.db.Close() }

// retry runs fn again once when the connection broke underneath it.
func (s *Store) retry(fn func() error) error {
	err := fn()
	if !connErr(err) {
		return err
	}
	s.log.Warn().Err(err).Msg("mysql connection lost, retrying")
	return fn()
}

func connErr(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, mysql.ErrInvalidConn) ||
		strings.HasSuffix(err.Error(), "operation timed out") ||
		strings.HasSuffix(err.Error(), "Server shutdown in progress")
}
