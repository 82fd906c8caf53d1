package repository

import (
	"context"

	"feedrelay/internal/domain/entity"
)

const (
	DefaultArticleLimit = 20
	MaxArticleLimit     = 1000
)

// ArticleCreate is the full payload for creating an article.
type ArticleCreate struct {
	ID          string
	SourceID    string
	Title       string
	ImageURL    string
	PublishedAt int64
}

// Article returns the article the payload describes.
func (c ArticleCreate) Article() *entity.Article {
	return &entity.Article{
		ID:          c.ID,
		SourceID:    c.SourceID,
		Title:       c.Title,
		ImageURL:    c.ImageURL,
		PublishedAt: c.PublishedAt,
	}
}

// AsUpdate converts the payload into the update applied when the id already exists.
func (c ArticleCreate) AsUpdate() ArticleUpdate {
	return ArticleUpdate{
		Title:       &c.Title,
		ImageURL:    &c.ImageURL,
		PublishedAt: &c.PublishedAt,
	}
}

// ArticleUpdate carries the mutable fields of an article. Nil fields are left untouched.
type ArticleUpdate struct {
	Title       *string
	ImageURL    *string
	PublishedAt *int64
}

// IsEmpty reports whether the update changes nothing.
func (u ArticleUpdate) IsEmpty() bool {
	return u.Title == nil && u.ImageURL == nil && u.PublishedAt == nil
}

// ArticleQuery selects articles for ListArticles.
//
// Cursor names an article; only articles strictly older than its PublishedAt
// are returned. An unknown cursor yields entity.ErrNotFound.
type ArticleQuery struct {
	Limit    int
	Cursor   string
	SourceID string
}

// EffectiveLimit clamps Limit into [1, MaxArticleLimit], defaulting to DefaultArticleLimit.
func (q ArticleQuery) EffectiveLimit() int {
	switch {
	case q.Limit <= 0:
		return DefaultArticleLimit
	case q.Limit > MaxArticleLimit:
		return MaxArticleLimit
	default:
		return q.Limit
	}
}

type ArticleRepository interface {
	GetArticle(ctx context.Context, id string) (*entity.Article, error)
	// ListArticlesBySource returns up to limit articles, newest first.
	ListArticlesBySource(ctx context.Context, sourceID string, limit int) ([]*entity.Article, error)
	// ListArticles returns articles ordered by PublishedAt descending.
	ListArticles(ctx context.Context, q ArticleQuery) ([]*entity.Article, error)
	// CreateArticle inserts an article, converting to an update when the id exists.
	CreateArticle(ctx context.Context, in ArticleCreate) (*entity.Article, error)
	// CreateArticles inserts the batch, skipping ids that repeat within it or
	// already exist. It returns the number of rows inserted.
	CreateArticles(ctx context.Context, in []ArticleCreate) (int, error)
	// UpsertArticle creates the article when id is absent, otherwise applies
	// update to the existing row.
	UpsertArticle(ctx context.Context, id string, create ArticleCreate, update ArticleUpdate) (*entity.Article, error)
	DeleteArticle(ctx context.Context, id string) error
}

// DedupeArticles drops entries whose id already appeared earlier in the batch.
func DedupeArticles(in []ArticleCreate) []ArticleCreate {
	seen := make(map[string]struct{}, len(in))
	out := make([]ArticleCreate, 0, len(in))
	for _, a := range in {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
