package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitness-bot/pkg/logger"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const notifyChannel = "docstore_changes"

var _ Store = (*PostgresStore)(nil)

type PostgresParams struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// PostgresStore keeps documents as JSONB rows in the documents table and uses LISTEN/NOTIFY for push.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

func NewPostgresPool(ctx context.Context, params PostgresParams) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(params.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB connection string: %w", err)
	}

	if params.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(params.MaxOpenConns)
	}
	if params.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(params.MaxIdleConns)
	}
	if params.ConnLifetime > 0 {
		poolConfig.MaxConnLifetime = params.ConnLifetime
	}
	poolConfig.MaxConnIdleTime = 15 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

func NewPostgresStore(pool *pgxpool.Pool, logger *logger.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger,
	}
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) (*Document, error) {
	query := `
        SELECT data, version, updated_at
        FROM documents
        WHERE collection = $1 AND key = $2
    `

	doc := &Document{Collection: collection, Key: key}
	var data []byte
	err := s.pool.QueryRow(ctx, query, collection, key).Scan(&data, &doc.Version, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, remoteErr("get document", err)
	}
	doc.Data = data

	return doc, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, key string, value any) (*Document, error) {
	data, err := encode(value)
	if err != nil {
		return nil, err
	}

	query := `
        INSERT INTO documents (collection, key, data, version, updated_at)
        VALUES ($1, $2, $3::jsonb, 1, NOW())
        ON CONFLICT (collection, key) DO UPDATE
        SET data = EXCLUDED.data, version = documents.version + 1, updated_at = NOW()
        RETURNING version, updated_at
    `

	doc, err := s.write(ctx, collection, key, func(tx pgx.Tx, doc *Document) error {
		doc.Data = data
		return tx.QueryRow(ctx, query, collection, key, string(data)).Scan(&doc.Version, &doc.UpdatedAt)
	})
	if err != nil {
		return nil, remoteErr("set document", err)
	}
	return doc, nil
}

func (s *PostgresStore) SetIfVersion(ctx context.Context, collection, key string, value any, version int64) (*Document, error) {
	data, err := encode(value)
	if err != nil {
		return nil, err
	}

	createQuery := `
        INSERT INTO documents (collection, key, data, version, updated_at)
        VALUES ($1, $2, $3::jsonb, 1, NOW())
        ON CONFLICT (collection, key) DO NOTHING
        RETURNING version, updated_at
    `
	replaceQuery := `
        UPDATE documents
        SET data = $3::jsonb, version = version + 1, updated_at = NOW()
        WHERE collection = $1 AND key = $2 AND version = $4
        RETURNING version, updated_at
    `

	doc, err := s.write(ctx, collection, key, func(tx pgx.Tx, doc *Document) error {
		doc.Data = data
		var row pgx.Row
		if version == 0 {
			row = tx.QueryRow(ctx, createQuery, collection, key, string(data))
		} else {
			row = tx.QueryRow(ctx, replaceQuery, collection, key, string(data), version)
		}
		err := row.Scan(&doc.Version, &doc.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return err
	})
	if err != nil {
		return nil, remoteErr("set document if version", err)
	}
	return doc, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, key string, fields map[string]any) (*Document, error) {
	patch, err := encode(fields)
	if err != nil {
		return nil, err
	}

	query := `
        UPDATE documents
        SET data = data || $3::jsonb, version = version + 1, updated_at = NOW()
        WHERE collection = $1 AND key = $2
        RETURNING data, version, updated_at
    `

	doc, err := s.write(ctx, collection, key, func(tx pgx.Tx, doc *Document) error {
		var data []byte
		err := tx.QueryRow(ctx, query, collection, key, string(patch)).Scan(&data, &doc.Version, &doc.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		doc.Data = data
		return err
	})
	if err != nil {
		return nil, remoteErr("update document", err)
	}
	return doc, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	query := `
        DELETE FROM documents
        WHERE collection = $1 AND key = $2
    `

	_, err := s.write(ctx, collection, key, func(tx pgx.Tx, _ *Document) error {
		_, err := tx.Exec(ctx, query, collection, key)
		return err
	})
	return remoteErr("delete document", err)
}

// write runs fn and the change notification in one transaction, so listeners only hear about committed writes.
func (s *PostgresStore) write(ctx context.Context, collection, key string, fn func(tx pgx.Tx, doc *Document) error) (_ *Document, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	doc := &Document{Collection: collection, Key: key}
	if err = fn(tx, doc); err != nil {
		return nil, err
	}
	if _, err = tx.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, ref(collection, key)); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, collection, key string) (<-chan Snapshot, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, remoteErr("acquire listener", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, remoteErr("listen", err)
	}

	doc, err := s.Get(ctx, collection, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		conn.Release()
		return nil, err
	}

	f := newFeed(ctx, nil)
	target := ref(collection, key)
	f.push(Snapshot{Doc: doc})

	go func() {
		defer func() {
			// the connection goes back to the pool, so drop the listen before releasing it
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Errorw("document subscription stopped", "document", target, "error", err)
					f.push(Snapshot{Err: remoteErr("wait for notification", err)})
				}
				return
			}
			if n.Payload != target {
				continue
			}
			if err := f.pushCurrent(ctx, s, collection, key); err != nil {
				if ctx.Err() == nil {
					f.push(Snapshot{Err: err})
				}
				return
			}
		}
	}()

	return f.out, nil
}
