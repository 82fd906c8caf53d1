package postgrest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/repository"
)

// idLookupChunk bounds the number of ids per in.(...) filter to keep URLs short.
const idLookupChunk = 100

func (s *Store) articlesTable() string {
	return s.client.Table(tableArticles)
}

func (s *Store) GetArticle(ctx context.Context, id string) (*entity.Article, error) {
	var row articleRow
	err := s.client.do(ctx, request{
		method: http.MethodGet,
		table:  s.articlesTable(),
		query:  newQuery().selectCols("*").eq(articleColumns.ID, id).values(),
		single: true,
	}, &row)
	if err != nil {
		return nil, fmt.Errorf("GetArticle: %w", err)
	}
	return row.toEntity(), nil
}

func (s *Store) ListArticlesBySource(ctx context.Context, sourceID string, limit int) ([]*entity.Article, error) {
	return s.ListArticles(ctx, repository.ArticleQuery{Limit: limit, SourceID: sourceID})
}

func (s *Store) ListArticles(ctx context.Context, aq repository.ArticleQuery) ([]*entity.Article, error) {
	q := newQuery().selectCols("*")
	if aq.SourceID != "" {
		q.eq(articleColumns.SourceID, aq.SourceID)
	}
	if aq.Cursor != "" {
		cursor, err := s.GetArticle(ctx, aq.Cursor)
		if err != nil {
			return nil, fmt.Errorf("ListArticles: cursor %q: %w", aq.Cursor, err)
		}
		q.lt(articleColumns.PublishedAt, cursor.PublishedAt)
	}
	q.order(articleColumns.PublishedAt+".desc", articleColumns.ID+".desc").limit(aq.EffectiveLimit())

	var rows []articleRow
	err := s.client.do(ctx, request{
		method: http.MethodGet,
		table:  s.articlesTable(),
		query:  q.values(),
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("ListArticles: %w", err)
	}
	return articlesFromRows(rows), nil
}

func articlesFromRows(rows []articleRow) []*entity.Article {
	out := make([]*entity.Article, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out
}

func (s *Store) CreateArticle(ctx context.Context, in repository.ArticleCreate) (*entity.Article, error) {
	if err := in.Article().Validate(); err != nil {
		return nil, fmt.Errorf("CreateArticle: %w", err)
	}

	return repository.CreateOrUpdate(ctx, "article", in.ID,
		func(ctx context.Context) (*entity.Article, error) {
			return s.insertArticle(ctx, in)
		},
		func(ctx context.Context) (*entity.Article, error) {
			return s.patchArticle(ctx, in.ID, in.AsUpdate())
		})
}

func (s *Store) insertArticle(ctx context.Context, in repository.ArticleCreate) (*entity.Article, error) {
	var row articleRow
	err := s.client.do(ctx, request{
		method: http.MethodPost,
		table:  s.articlesTable(),
		body:   newArticleRow(in),
		single: true,
		prefer: preferRepresentation,
	}, &row)
	if err != nil {
		return nil, fmt.Errorf("insertArticle: %w", err)
	}
	return row.toEntity(), nil
}

func (s *Store) patchArticle(ctx context.Context, id string, in repository.ArticleUpdate) (*entity.Article, error) {
	if in.IsEmpty() {
		return s.GetArticle(ctx, id)
	}

	var row articleRow
	err := s.client.do(ctx, request{
		method: http.MethodPatch,
		table:  s.articlesTable(),
		query:  newQuery().eq(articleColumns.ID, id).values(),
		body:   articlePatch(in, s.now()),
		single: true,
		prefer: preferRepresentation,
	}, &row)
	if err != nil {
		return nil, fmt.Errorf("patchArticle: %w", err)
	}
	return row.toEntity(), nil
}

// CreateArticles drops ids already stored, then bulk-inserts the rest.
// If a concurrent writer inserts one of them first, the batch falls back to
// row-by-row inserts that skip conflicts.
func (s *Store) CreateArticles(ctx context.Context, in []repository.ArticleCreate) (int, error) {
	batch := repository.DedupeArticles(in)
	if len(batch) == 0 {
		return 0, nil
	}
	for _, a := range batch {
		if err := a.Article().Validate(); err != nil {
			return 0, fmt.Errorf("CreateArticles: article %q: %w", a.ID, err)
		}
	}

	existing, err := s.existingArticleIDs(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("CreateArticles: %w", err)
	}

	rows := make([]articleRow, 0, len(batch))
	for _, a := range batch {
		if _, ok := existing[a.ID]; !ok {
			rows = append(rows, newArticleRow(a))
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var inserted []articleRow
	err = s.client.do(ctx, request{
		method: http.MethodPost,
		table:  s.articlesTable(),
		body:   rows,
		prefer: preferRepresentation,
	}, &inserted)
	switch {
	case err == nil:
		return len(inserted), nil
	case !errors.Is(err, repository.ErrConflict):
		return 0, fmt.Errorf("CreateArticles: %w", err)
	}

	slog.Default().Debug("bulk insert conflicted, inserting row by row",
		slog.Int("rows", len(rows)))
	n := 0
	for _, r := range rows {
		err := s.client.do(ctx, request{
			method: http.MethodPost,
			table:  s.articlesTable(),
			body:   r,
			prefer: preferMinimal,
		}, nil)
		switch {
		case err == nil:
			n++
		case errors.Is(err, repository.ErrConflict):
			// already stored by someone else
		default:
			return n, fmt.Errorf("CreateArticles: article %q: %w", r.ID, err)
		}
	}
	return n, nil
}

func (s *Store) existingArticleIDs(ctx context.Context, batch []repository.ArticleCreate) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for start := 0; start < len(batch); start += idLookupChunk {
		end := min(start+idLookupChunk, len(batch))
		ids := make([]string, 0, end-start)
		for _, a := range batch[start:end] {
			ids = append(ids, a.ID)
		}

		var rows []struct {
			ID string `json:"id"`
		}
		err := s.client.do(ctx, request{
			method: http.MethodGet,
			table:  s.articlesTable(),
			query:  newQuery().selectCols(articleColumns.ID).in(articleColumns.ID, ids).values(),
		}, &rows)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			existing[r.ID] = struct{}{}
		}
	}
	return existing, nil
}

// UpsertArticle reads first: a missing id is created from create, an
// existing one gets only the fields set in update.
func (s *Store) UpsertArticle(ctx context.Context, id string, create repository.ArticleCreate, update repository.ArticleUpdate) (*entity.Article, error) {
	create.ID = id
	if err := create.Article().Validate(); err != nil {
		return nil, fmt.Errorf("UpsertArticle: %w", err)
	}

	current, err := s.GetArticle(ctx, id)
	switch {
	case err == nil:
		if update.IsEmpty() {
			return current, nil
		}
		return s.patchArticle(ctx, id, update)
	case !errors.Is(err, entity.ErrNotFound):
		return nil, fmt.Errorf("UpsertArticle: %w", err)
	}

	return repository.CreateOrUpdate(ctx, "article", id,
		func(ctx context.Context) (*entity.Article, error) {
			return s.insertArticle(ctx, create)
		},
		func(ctx context.Context) (*entity.Article, error) {
			return s.patchArticle(ctx, id, update)
		})
}

func (s *Store) DeleteArticle(ctx context.Context, id string) error {
	var rows []articleRow
	err := s.client.do(ctx, request{
		method: http.MethodDelete,
		table:  s.articlesTable(),
		query:  newQuery().eq(articleColumns.ID, id).values(),
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return fmt.Errorf("DeleteArticle: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("DeleteArticle: %w", entity.ErrNotFound)
	}
	return nil
}
