// Package postgres provides a Postgres-backed TaskStore for deployments
// that own their task tables instead of going through the storage API.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flatwatch/scraper/internal/monitor"
)

// StoreConfig controls the Postgres connection pool.
type StoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store implements monitor.TaskStore on Postgres.
type Store struct {
	pool pgxPool
}

// NewStore connects a pool using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// ListDueTasks returns the active monitoring tasks.
func (s *Store) ListDueTasks(ctx context.Context) ([]monitor.WatchTask, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, chat_id, name, url, city_id, allowed_district_ids, last_updated, last_got_item, is_active
FROM monitoring_tasks
WHERE is_active`)
	if err != nil {
		return nil, storeErr("list due tasks", err)
	}
	defer rows.Close()

	var tasks []monitor.WatchTask
	for rows.Next() {
		var task monitor.WatchTask
		if err := rows.Scan(
			&task.ID,
			&task.ChatID,
			&task.Name,
			&task.URL,
			&task.CityID,
			&task.AllowedDistrictIDs,
			&task.LastChecked,
			&task.LastGotItem,
			&task.Active,
		); err != nil {
			return nil, storeErr("list due tasks", fmt.Errorf("scan task: %w", err))
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list due tasks", err)
	}
	return tasks, nil
}

// SeenPermalinks returns the permalinks already stored for a task.
func (s *Store) SeenPermalinks(ctx context.Context, taskID int64) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT permalink FROM listing_items WHERE task_id = $1`, taskID)
	if err != nil {
		return nil, storeErr("list seen permalinks", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var permalink string
		if err := rows.Scan(&permalink); err != nil {
			return nil, storeErr("list seen permalinks", fmt.Errorf("scan permalink: %w", err))
		}
		seen[permalink] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list seen permalinks", err)
	}
	return seen, nil
}

// SubmitItems inserts listings for a task. Permalinks already present are
// skipped via ON CONFLICT, so the accepted count only covers new rows.
func (s *Store) SubmitItems(ctx context.Context, taskID int64, items []monitor.Listing) (int, error) {
	accepted := 0
	for _, item := range items {
		tag, err := s.pool.Exec(ctx, `
INSERT INTO listing_items (
	task_id, permalink, title, price_amount, currency,
	city, district, district_id, image_urls, posted_at,
	description, summary, added_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
ON CONFLICT (task_id, permalink) DO NOTHING`,
			taskID,
			item.Permalink,
			item.Title,
			item.PriceAmount,
			item.Currency,
			item.City,
			item.District,
			item.DistrictID,
			item.ImageURLs,
			item.PostedAt,
			item.Description,
			item.Summary,
		)
		if err != nil {
			return accepted, storeErr("submit items", fmt.Errorf("insert item %s: %w", item.Permalink, err))
		}
		accepted += int(tag.RowsAffected())
	}
	return accepted, nil
}

// UpdateCheckpoint advances the task's checkpoint timestamps. Nil fields
// keep their current value.
func (s *Store) UpdateCheckpoint(ctx context.Context, taskID int64, update monitor.CheckpointUpdate) error {
	_, err := s.pool.Exec(ctx, `
UPDATE monitoring_tasks
SET last_updated = COALESCE($2, last_updated),
    last_got_item = COALESCE($3, last_got_item)
WHERE id = $1`,
		taskID, update.LastChecked, update.LastGotItem)
	if err != nil {
		return storeErr("update checkpoint", err)
	}
	return nil
}

// CleanupOldItems drops listings older than the given age.
func (s *Store) CleanupOldItems(ctx context.Context, olderThanDays int) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM listing_items WHERE added_at < now() - make_interval(days => $1)`,
		olderThanDays)
	if err != nil {
		return storeErr("cleanup old items", err)
	}
	return nil
}

// storeErr wraps a database failure as a transient StoreError: from the
// pipeline's point of view the database is as retryable as the HTTP
// storage service when it is unreachable.
func storeErr(op string, err error) *monitor.StoreError {
	return &monitor.StoreError{Op: op, Err: err}
}
