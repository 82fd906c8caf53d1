package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sources (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    cover_image_url TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    status          SMALLINT NOT NULL DEFAULT 1,
    last_synced_at  BIGINT NOT NULL DEFAULT 0,
    updated_at      BIGINT NOT NULL DEFAULT 0,
    has_history     SMALLINT NOT NULL DEFAULT 1,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS articles (
    id           TEXT PRIMARY KEY,
    source_id    TEXT NOT NULL,
    title        TEXT NOT NULL,
    image_url    TEXT NOT NULL DEFAULT '',
    published_at BIGINT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	// 一覧とカーソルページングは published_at DESC, id DESC
	`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_source_published ON articles(source_id, published_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_sources_status ON sources(status)`,
}

// MigrateUp creates the relational schema. Every statement is idempotent.
func MigrateUp(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("MigrateUp: statement %d: %w", i, err)
		}
	}
	return nil
}
