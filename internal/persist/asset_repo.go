package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/assetcore/internal/catalog"
)

// AssetRepo stores catalog entries in PostgreSQL. It implements
// catalog.Source.
type AssetRepo struct {
	db *DB
}

func NewAssetRepo(db *DB) *AssetRepo {
	return &AssetRepo{db: db}
}

// Entries lists every asset ordered by key.
func (r *AssetRepo) Entries(ctx context.Context) ([]catalog.Entry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT key, name, kind, path, checksum, components, sprites, lifetime_ms
		 FROM assets
		 ORDER BY key`,
	)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var result []catalog.Entry
	for rows.Next() {
		var (
			e          catalog.Entry
			rawSprites []byte
			lifetimeMs int64
		)
		if err := rows.Scan(
			&e.Key, &e.Name, &e.Kind, &e.Path, &e.Checksum,
			&e.Components, &rawSprites, &lifetimeMs,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawSprites, &e.Sprites); err != nil {
			return nil, fmt.Errorf("asset %q sprites: %w", e.Key, err)
		}
		if len(e.Sprites) == 0 {
			e.Sprites = nil
		}
		e.Lifetime = time.Duration(lifetimeMs) * time.Millisecond
		result = append(result, e)
	}
	return result, rows.Err()
}

// Upsert writes entries in one transaction, replacing existing keys.
func (r *AssetRepo) Upsert(ctx context.Context, entries []catalog.Entry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("assets begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		sprites := e.Sprites
		if sprites == nil {
			sprites = []catalog.SpriteEntry{}
		}
		data, err := json.Marshal(sprites)
		if err != nil {
			return err
		}
		components := e.Components
		if components == nil {
			components = []string{}
		}
		batch.Queue(
			`INSERT INTO assets (key, name, kind, path, checksum, components, sprites, lifetime_ms, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			 ON CONFLICT (key) DO UPDATE SET
			   name = EXCLUDED.name, kind = EXCLUDED.kind, path = EXCLUDED.path,
			   checksum = EXCLUDED.checksum, components = EXCLUDED.components,
			   sprites = EXCLUDED.sprites, lifetime_ms = EXCLUDED.lifetime_ms,
			   updated_at = now()`,
			e.Key, e.Name, e.Kind, e.Path, e.Checksum, components, data, e.Lifetime.Milliseconds(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("assets upsert: %w", err)
	}
	return tx.Commit(ctx)
}

// Delete removes one asset row. Returns false if the key did not exist.
func (r *AssetRepo) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM assets WHERE key = $1`, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Count returns the number of stored assets.
func (r *AssetRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM assets`).Scan(&n)
	return n, err
}
