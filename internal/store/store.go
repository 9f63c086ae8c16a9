// Optional client-side persistence: completed link records and a pin-URI
// cache keyed by (platform, userId). The ledger stays the source of truth;
// this store only saves callers a repin and a lookup.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
)

// DBPool abstracts the pgxpool.Pool methods we use, so the store logic can be
// tested against a mock instead of a live database.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides a PostgreSQL implementation of the pipeline's LinkStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store, verifies the connection, and ensures the schema.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool, log: logger.Named("store")}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS links (
			wallet     TEXT        NOT NULL,
			platform   TEXT        NOT NULL,
			user_id    TEXT        NOT NULL,
			username   TEXT        NOT NULL DEFAULT '',
			tx_hash    TEXT        NOT NULL DEFAULT '',
			linked_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (wallet, platform)
		);
		CREATE TABLE IF NOT EXISTS pin_uris (
			platform   TEXT        NOT NULL,
			user_id    TEXT        NOT NULL,
			uri        TEXT        NOT NULL,
			pinned_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (platform, user_id)
		);
	`)
	return err
}

// SaveLink upserts the record for (wallet, platform).
func (s *Store) SaveLink(ctx context.Context, rec schemas.LinkRecord) error {
	linkedAt := rec.LinkedAt
	if linkedAt.IsZero() {
		linkedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO links (wallet, platform, user_id, username, tx_hash, linked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (wallet, platform) DO UPDATE SET
			user_id   = EXCLUDED.user_id,
			username  = EXCLUDED.username,
			tx_hash   = EXCLUDED.tx_hash,
			linked_at = EXCLUDED.linked_at;
	`, rec.Wallet, string(rec.Platform), rec.UserID, rec.Username, rec.TxHash, linkedAt)
	if err != nil {
		return fmt.Errorf("failed to save link: %w", err)
	}
	s.log.Debug("Link record saved",
		zap.String("wallet", rec.Wallet),
		zap.String("platform", string(rec.Platform)))
	return nil
}

// LinksByWallet returns all stored links for a wallet, newest first.
func (s *Store) LinksByWallet(ctx context.Context, wallet string) ([]schemas.LinkRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT wallet, platform, user_id, username, tx_hash, linked_at
		FROM links WHERE wallet = $1
		ORDER BY linked_at DESC;
	`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []schemas.LinkRecord
	for rows.Next() {
		var rec schemas.LinkRecord
		var platform string
		if err := rows.Scan(&rec.Wallet, &platform, &rec.UserID, &rec.Username, &rec.TxHash, &rec.LinkedAt); err != nil {
			return nil, err
		}
		rec.Platform = schemas.Platform(platform)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CachedPinURI returns the cached URI for (platform, userId), or "" when the
// cache has no entry.
func (s *Store) CachedPinURI(ctx context.Context, platform schemas.Platform, userID string) (string, error) {
	var uri string
	err := s.pool.QueryRow(ctx, `
		SELECT uri FROM pin_uris WHERE platform = $1 AND user_id = $2;
	`, string(platform), userID).Scan(&uri)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return uri, nil
}

// SavePinURI caches the pinned URI for (platform, userId). The first URI
// wins: the subject atom id derives from it, so it must stay stable.
func (s *Store) SavePinURI(ctx context.Context, platform schemas.Platform, userID, uri string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pin_uris (platform, user_id, uri, pinned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (platform, user_id) DO NOTHING;
	`, string(platform), userID, uri, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to cache pin uri: %w", err)
	}
	return nil
}
