package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const pgChannel = "store_changed"

// PostgresStore implementa Store sobre una tabla path/key/value. Cada
// mutación hace pg_notify con el path; un listener dedicado por
// suscripción relee el conjunto completo en cada aviso.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresPool construye un pool con límites razonables para
// ambientes iniciales.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	const schema = `
		CREATE TABLE IF NOT EXISTS store_nodes (
			path  TEXT NOT NULL,
			key   TEXT NOT NULL,
			value JSONB NOT NULL,
			PRIMARY KEY (path, key)
		)
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	conn, err := s.pool.Acquire(subCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	if _, err := conn.Exec(subCtx, "LISTEN "+pgChannel); err != nil {
		conn.Release()
		cancel()
		return nil, err
	}

	ch := make(chan Snapshot, subscriberBuffer)
	go func() {
		defer close(ch)
		defer releaseListener(conn, conn.Conn())

		snap, err := s.read(subCtx, path)
		if err == nil {
			ch <- snap
		} else if subCtx.Err() == nil {
			s.logger.Warn("pg initial snapshot failed", zap.String("path", path), zap.Error(err))
		}

		for {
			n, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					s.logger.Warn("pg listen failed", zap.String("path", path), zap.Error(err))
				}
				return
			}
			if n.Payload != path {
				continue
			}
			snap, err := s.read(subCtx, path)
			if err != nil {
				if subCtx.Err() == nil {
					s.logger.Warn("pg snapshot read failed", zap.String("path", path), zap.Error(err))
				}
				continue
			}
			offerLatest(ch, snap)
		}
	}()
	return NewSubscription(ch, cancel), nil
}

type pgReleaser interface{ Release() }

type pgCloser interface {
	Close(ctx context.Context) error
}

// releaseListener no devuelve al pool una conexión con el LISTEN
// vigente: la cierra primero y el pool la descarta al liberarla.
func releaseListener(conn pgReleaser, raw pgCloser) {
	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_ = raw.Close(closeCtx)
	cancel()
	conn.Release()
}

func (s *PostgresStore) Push(_ context.Context, _ string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *PostgresStore) Set(ctx context.Context, path, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO store_nodes (path, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (path, key) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := s.pool.Exec(ctx, query, path, key, data); err != nil {
		return err
	}
	return s.notify(ctx, path)
}

func (s *PostgresStore) Remove(ctx context.Context, path, key string) error {
	const query = `DELETE FROM store_nodes WHERE path = $1 AND key = $2`
	if _, err := s.pool.Exec(ctx, query, path, key); err != nil {
		return err
	}
	return s.notify(ctx, path)
}

func (s *PostgresStore) notify(ctx context.Context, path string) error {
	_, err := s.pool.Exec(ctx, "SELECT pg_notify($1, $2)", pgChannel, path)
	return err
}

func (s *PostgresStore) read(ctx context.Context, path string) (Snapshot, error) {
	const query = `
		SELECT key, value
		FROM store_nodes
		WHERE path = $1
		ORDER BY key ASC
	`
	rows, err := s.pool.Query(ctx, query, path)
	if err != nil {
		return Snapshot{}, err
	}
	return collectSnapshot(path, rows)
}

// collectSnapshot arma el snapshot a partir de filas key/value ya
// ordenadas por key.
func collectSnapshot(path string, rows pgx.Rows) (Snapshot, error) {
	defer rows.Close()

	snap := Snapshot{Path: path}
	for rows.Next() {
		var child Child
		var value []byte
		if err := rows.Scan(&child.Key, &value); err != nil {
			return Snapshot{}, err
		}
		child.Data = json.RawMessage(value)
		snap.Children = append(snap.Children, child)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
