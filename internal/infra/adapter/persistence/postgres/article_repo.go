package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/repository"
)

const articleColumns = `id, source_id, title, image_url, published_at, created_at, updated_at`

// insertChunkSize keeps multi-row inserts under the 65535 bind parameter limit.
const insertChunkSize = 500

type articleRow struct {
	ID          string    `db:"id"`
	SourceID    string    `db:"source_id"`
	Title       string    `db:"title"`
	ImageURL    string    `db:"image_url"`
	PublishedAt int64     `db:"published_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r articleRow) toEntity() *entity.Article {
	return &entity.Article{
		ID:          r.ID,
		SourceID:    r.SourceID,
		Title:       r.Title,
		ImageURL:    r.ImageURL,
		PublishedAt: r.PublishedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func articlesFromRows(rows []articleRow) []*entity.Article {
	out := make([]*entity.Article, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out
}

type ArticleRepo struct {
	db *sqlx.DB
}

func NewArticleRepo(db *sqlx.DB) repository.ArticleRepository {
	return &ArticleRepo{db: db}
}

func (repo *ArticleRepo) GetArticle(ctx context.Context, id string) (*entity.Article, error) {
	const query = `SELECT ` + articleColumns + ` FROM articles WHERE id = $1 LIMIT 1`
	var row articleRow
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("GetArticle: %w", translateError(err))
	}
	return row.toEntity(), nil
}

func (repo *ArticleRepo) ListArticlesBySource(ctx context.Context, sourceID string, limit int) ([]*entity.Article, error) {
	return repo.ListArticles(ctx, repository.ArticleQuery{Limit: limit, SourceID: sourceID})
}

func (repo *ArticleRepo) ListArticles(ctx context.Context, q repository.ArticleQuery) ([]*entity.Article, error) {
	var qb queryBuilder
	if q.SourceID != "" {
		qb.where("source_id", "=", q.SourceID)
	}
	if q.Cursor != "" {
		cursor, err := repo.GetArticle(ctx, q.Cursor)
		if err != nil {
			return nil, fmt.Errorf("ListArticles: cursor %q: %w", q.Cursor, err)
		}
		qb.where("published_at", "<", cursor.PublishedAt)
	}

	query := `SELECT ` + articleColumns + ` FROM articles` + qb.whereClause() +
		` ORDER BY published_at DESC, id DESC LIMIT ` + qb.arg(q.EffectiveLimit())

	var rows []articleRow
	if err := repo.db.SelectContext(ctx, &rows, query, qb.args...); err != nil {
		return nil, fmt.Errorf("ListArticles: %w", err)
	}
	return articlesFromRows(rows), nil
}

func (repo *ArticleRepo) CreateArticle(ctx context.Context, in repository.ArticleCreate) (*entity.Article, error) {
	if err := in.Article().Validate(); err != nil {
		return nil, fmt.Errorf("CreateArticle: %w", err)
	}

	return repository.CreateOrUpdate(ctx, "article", in.ID,
		func(ctx context.Context) (*entity.Article, error) {
			return repo.insertArticle(ctx, in)
		},
		func(ctx context.Context) (*entity.Article, error) {
			return repo.updateArticle(ctx, in.ID, in.AsUpdate())
		})
}

func (repo *ArticleRepo) insertArticle(ctx context.Context, in repository.ArticleCreate) (*entity.Article, error) {
	const query = `
INSERT INTO articles (id, source_id, title, image_url, published_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + articleColumns

	var row articleRow
	if err := repo.db.GetContext(ctx, &row, query,
		in.ID, in.SourceID, in.Title, in.ImageURL, in.PublishedAt); err != nil {
		return nil, fmt.Errorf("insertArticle: %w", translateError(err))
	}
	return row.toEntity(), nil
}

func (repo *ArticleRepo) updateArticle(ctx context.Context, id string, in repository.ArticleUpdate) (*entity.Article, error) {
	if in.IsEmpty() {
		return repo.GetArticle(ctx, id)
	}

	var qb queryBuilder
	if in.Title != nil {
		qb.set("title", *in.Title)
	}
	if in.ImageURL != nil {
		qb.set("image_url", *in.ImageURL)
	}
	if in.PublishedAt != nil {
		qb.set("published_at", *in.PublishedAt)
	}
	qb.sets = append(qb.sets, "updated_at = now()")
	qb.where("id", "=", id)

	query := `UPDATE articles SET ` + qb.setClause() + qb.whereClause() + ` RETURNING ` + articleColumns
	var row articleRow
	if err := repo.db.GetContext(ctx, &row, query, qb.args...); err != nil {
		return nil, fmt.Errorf("updateArticle: %w", translateError(err))
	}
	return row.toEntity(), nil
}

// CreateArticles inserts the deduplicated batch in one transaction.
// ON CONFLICT DO NOTHING skips ids that already exist.
func (repo *ArticleRepo) CreateArticles(ctx context.Context, in []repository.ArticleCreate) (int, error) {
	batch := repository.DedupeArticles(in)
	if len(batch) == 0 {
		return 0, nil
	}
	for _, a := range batch {
		if err := a.Article().Validate(); err != nil {
			return 0, fmt.Errorf("CreateArticles: article %q: %w", a.ID, err)
		}
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("CreateArticles: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for start := 0; start < len(batch); start += insertChunkSize {
		end := min(start+insertChunkSize, len(batch))
		query, args := bulkInsertQuery(batch[start:end])

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("CreateArticles: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("CreateArticles: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("CreateArticles: commit: %w", err)
	}
	return inserted, nil
}

func bulkInsertQuery(batch []repository.ArticleCreate) (string, []any) {
	var qb queryBuilder
	values := make([]string, 0, len(batch))
	for _, a := range batch {
		values = append(values, "("+strings.Join([]string{
			qb.arg(a.ID), qb.arg(a.SourceID), qb.arg(a.Title), qb.arg(a.ImageURL), qb.arg(a.PublishedAt),
		}, ", ")+")")
	}
	query := `INSERT INTO articles (id, source_id, title, image_url, published_at) VALUES ` +
		strings.Join(values, ", ") + ` ON CONFLICT (id) DO NOTHING`
	return query, qb.args
}

// UpsertArticle uses the native upsert. Nil update fields fall back to the
// stored value through COALESCE, so they are preserved.
func (repo *ArticleRepo) UpsertArticle(ctx context.Context, id string, create repository.ArticleCreate, update repository.ArticleUpdate) (*entity.Article, error) {
	create.ID = id
	if err := create.Article().Validate(); err != nil {
		return nil, fmt.Errorf("UpsertArticle: %w", err)
	}

	const query = `
INSERT INTO articles (id, source_id, title, image_url, published_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    title        = COALESCE($6, articles.title),
    image_url    = COALESCE($7, articles.image_url),
    published_at = COALESCE($8, articles.published_at),
    updated_at   = now()
RETURNING ` + articleColumns

	var row articleRow
	err := repo.db.GetContext(ctx, &row, query,
		create.ID, create.SourceID, create.Title, create.ImageURL, create.PublishedAt,
		update.Title, update.ImageURL, update.PublishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("UpsertArticle: %w", translateError(err))
	}
	return row.toEntity(), nil
}

func (repo *ArticleRepo) DeleteArticle(ctx context.Context, id string) error {
	const query = `DELETE FROM articles WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("DeleteArticle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteArticle: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("DeleteArticle: %w", entity.ErrNotFound)
	}
	return nil
}
