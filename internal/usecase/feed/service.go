package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/observability/metrics"
	"feedrelay/internal/observability/tracing"
	"feedrelay/internal/repository"
)

// FullText supplies article bodies for full-text mode. Content must not fail;
// unavailable bodies come back as a placeholder.
type FullText interface {
	Content(ctx context.Context, id string) string
}

// Request is one feed build.
type Request struct {
	// SourceID selects a source; "" or AllSourcesID selects the virtual all-sources feed.
	SourceID string
	// Format is the type token (atom, rss, json); anything else renders atom.
	Format string
	Limit  int
	Page   int
	// Mode overrides Config.DefaultMode when non-empty.
	Mode string
	// TitleInclude and TitleExclude are pipe-delimited keyword lists.
	TitleInclude string
	TitleExclude string
}

// Document is a serialized feed.
type Document struct {
	Format   Format
	MimeType string
	Content  []byte
	// Items is the number of items after filtering.
	Items int
}

// Info summarizes one source for the feed list.
type Info struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Intro      string `json:"intro"`
	Cover      string `json:"cover"`
	SyncTime   int64  `json:"syncTime"`
	UpdateTime int64  `json:"updateTime"`
}

// Service builds feed documents from stored sources and articles.
type Service struct {
	sources  repository.SourceRepository
	articles repository.ArticleRepository
	fullText FullText
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a feed Service. fullText may be nil when full-text mode is never used.
func NewService(
	sources repository.SourceRepository,
	articles repository.ArticleRepository,
	fullText FullText,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sources:  sources,
		articles: articles,
		fullText: fullText,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate builds and serializes the feed described by req.
//
// Errors:
//   - ErrSourceNotFound: req.SourceID names no stored source
//   - any backend error from the repositories, unchanged
func (s *Service) Generate(ctx context.Context, req Request) (doc *Document, err error) {
	format := ParseFormat(req.Format)
	fullText := s.fullTextEnabled(req.Mode)
	mode := "default"
	if fullText {
		mode = ModeFullText
	}

	ctx, span := tracing.StartSpan(ctx, "feed.generate",
		attribute.String("feed.id", req.SourceID),
		attribute.String("feed.format", string(format)),
		attribute.String("feed.mode", mode))
	start := time.Now()
	defer func() {
		tracing.EndSpan(span, err)
		switch {
		case err == nil:
			metrics.RecordFeedRender(string(format), mode, "success", time.Since(start), doc.Items)
		case errors.Is(err, ErrSourceNotFound):
			metrics.RecordFeedRender(string(format), mode, "not_found", time.Since(start), 0)
		default:
			metrics.RecordFeedRender(string(format), mode, "error", time.Since(start), 0)
		}
	}()

	limit, page := s.window(req.Limit, req.Page)
	src, arts, err := s.load(ctx, req.SourceID, limit, page)
	if err != nil {
		return nil, err
	}
	virtual := src.ID == AllSourcesID

	var authors map[string]string
	if virtual {
		authors, err = s.authorNames(ctx)
		if err != nil {
			return nil, err
		}
	}

	entries := s.entries(ctx, arts, authors, fullText)
	entries = filterTitles(entries, req.TitleInclude, req.TitleExclude)

	content, err := s.render(format, src, entries)
	if err != nil {
		return nil, fmt.Errorf("Generate: render %s: %w", format, err)
	}

	s.logger.Debug("feed generated",
		slog.String("feed_id", src.ID),
		slog.String("format", string(format)),
		slog.Int("articles", len(arts)),
		slog.Int("items", len(entries)))

	return &Document{
		Format:   format,
		MimeType: format.MimeType(),
		Content:  content,
		Items:    len(entries),
	}, nil
}

// ListFeeds returns every stored source, active and disabled, ordered by id.
func (s *Service) ListFeeds(ctx context.Context) ([]Info, error) {
	all, err := s.allSources(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(all))
	for _, src := range all {
		out = append(out, Info{
			ID:         src.ID,
			Name:       src.Name,
			Intro:      src.Description,
			Cover:      src.CoverImageURL,
			SyncTime:   src.LastSyncedAt,
			UpdateTime: src.UpdatedAt,
		})
	}
	return out, nil
}

func (s *Service) fullTextEnabled(mode string) bool {
	if mode != "" {
		return mode == ModeFullText
	}
	return s.cfg.DefaultMode == ModeFullText
}

// window clamps limit to [1, MaxLimit] (0 selects DefaultLimit) and page to >= 1.
func (s *Service) window(limit, page int) (int, int) {
	switch {
	case limit <= 0:
		limit = s.cfg.DefaultLimit
	case limit > s.cfg.MaxLimit:
		limit = s.cfg.MaxLimit
	}
	if page < 1 {
		page = 1
	}
	return limit, page
}

// load returns the channel source and the articles of the requested page.
// Page N reads limit*N articles, capped at MaxArticleLimit, and keeps the last limit.
func (s *Service) load(ctx context.Context, id string, limit, page int) (*entity.Source, []*entity.Article, error) {
	src, err := s.channel(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	offset := limit * (page - 1)
	n := limit * page
	if n > repository.MaxArticleLimit {
		n = repository.MaxArticleLimit
	}
	if offset >= n {
		return src, nil, nil
	}

	var arts []*entity.Article
	if src.ID == AllSourcesID {
		arts, err = s.articles.ListArticles(ctx, repository.ArticleQuery{Limit: n})
	} else {
		arts, err = s.articles.ListArticlesBySource(ctx, src.ID, n)
	}
	if err != nil {
		return nil, nil, err
	}

	if offset >= len(arts) {
		return src, nil, nil
	}
	return src, arts[offset:], nil
}

// channel resolves the source for id, synthesizing the virtual all-sources feed.
func (s *Service) channel(ctx context.Context, id string) (*entity.Source, error) {
	if id == "" || id == AllSourcesID {
		return s.virtualSource(), nil
	}
	src, err := s.sources.GetSource(ctx, id)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (s *Service) virtualSource() *entity.Source {
	cover := s.cfg.FallbackCoverURL
	if s.cfg.OriginURL != "" {
		cover = strings.TrimRight(s.cfg.OriginURL, "/") + "/favicon.ico"
	}
	return &entity.Source{
		ID:            AllSourcesID,
		Name:          s.cfg.Generator + " All",
		Description:   "All articles aggregated by " + s.cfg.Generator,
		CoverImageURL: cover,
		Status:        entity.SourceActive,
		UpdatedAt:     s.now().Unix(),
		HasHistory:    entity.HistoryUnknown,
	}
}

// authorNames maps source id to display name, read once per render.
func (s *Service) authorNames(ctx context.Context) (map[string]string, error) {
	all, err := s.allSources(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(all))
	for _, src := range all {
		names[src.ID] = src.Name
	}
	return names, nil
}

func (s *Service) allSources(ctx context.Context) ([]*entity.Source, error) {
	var all []*entity.Source
	for _, status := range []entity.SourceStatus{entity.SourceActive, entity.SourceDisabled} {
		srcs, err := s.sources.ListSources(ctx, status)
		if err != nil {
			return nil, err
		}
		all = append(all, srcs...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}
