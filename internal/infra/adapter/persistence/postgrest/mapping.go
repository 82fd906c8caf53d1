package postgrest

import (
	"time"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/repository"
)

// Logical table names; the configured prefix is added by Client.Table.
const (
	tableSources  = "feeds"
	tableArticles = "articles"
)

// sourceColumns maps each Source field to its storage column. The json tags
// on sourceRow must use exactly these names.
var sourceColumns = struct {
	ID, Name, CoverImageURL, Description, Status, LastSyncedAt, UpdatedAt, HasHistory, CreatedAt, RowUpdatedAt string
}{
	ID:            "id",
	Name:          "mp_name",
	CoverImageURL: "mp_cover",
	Description:   "mp_intro",
	Status:        "status",
	LastSyncedAt:  "sync_time",
	UpdatedAt:     "update_time",
	HasHistory:    "has_history",
	CreatedAt:     "created_at",
	RowUpdatedAt:  "updated_at",
}

// articleColumns maps each Article field to its storage column. The json
// tags on articleRow must use exactly these names.
var articleColumns = struct {
	ID, SourceID, Title, ImageURL, PublishedAt, CreatedAt, UpdatedAt string
}{
	ID:          "id",
	SourceID:    "mp_id",
	Title:       "title",
	ImageURL:    "pic_url",
	PublishedAt: "publish_time",
	CreatedAt:   "created_at",
	UpdatedAt:   "updated_at",
}

type sourceRow struct {
	ID            string     `json:"id"`
	Name          string     `json:"mp_name"`
	CoverImageURL string     `json:"mp_cover"`
	Description   string     `json:"mp_intro"`
	Status        int        `json:"status"`
	LastSyncedAt  int64      `json:"sync_time"`
	UpdatedAt     int64      `json:"update_time"`
	HasHistory    *int       `json:"has_history"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	RowUpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

func newSourceRow(src *entity.Source) sourceRow {
	history := int(src.HasHistory)
	return sourceRow{
		ID:            src.ID,
		Name:          src.Name,
		CoverImageURL: src.CoverImageURL,
		Description:   src.Description,
		Status:        int(src.Status),
		LastSyncedAt:  src.LastSyncedAt,
		UpdatedAt:     src.UpdatedAt,
		HasHistory:    &history,
	}
}

func (r sourceRow) toEntity() *entity.Source {
	history := entity.HistoryUnknown
	if r.HasHistory != nil {
		history = entity.HistoryFlag(*r.HasHistory)
	}
	return &entity.Source{
		ID:            r.ID,
		Name:          r.Name,
		CoverImageURL: r.CoverImageURL,
		Description:   r.Description,
		Status:        entity.SourceStatus(r.Status),
		LastSyncedAt:  r.LastSyncedAt,
		UpdatedAt:     r.UpdatedAt,
		HasHistory:    history,
	}
}

// sourcePatch translates an update payload into a column map holding only
// the fields that are set.
func sourcePatch(u repository.SourceUpdate, now time.Time) map[string]any {
	patch := map[string]any{sourceColumns.RowUpdatedAt: now.UTC()}
	if u.Name != nil {
		patch[sourceColumns.Name] = *u.Name
	}
	if u.CoverImageURL != nil {
		patch[sourceColumns.CoverImageURL] = *u.CoverImageURL
	}
	if u.Description != nil {
		patch[sourceColumns.Description] = *u.Description
	}
	if u.Status != nil {
		patch[sourceColumns.Status] = int(*u.Status)
	}
	if u.LastSyncedAt != nil {
		patch[sourceColumns.LastSyncedAt] = *u.LastSyncedAt
	}
	if u.UpdatedAt != nil {
		patch[sourceColumns.UpdatedAt] = *u.UpdatedAt
	}
	if u.HasHistory != nil {
		patch[sourceColumns.HasHistory] = int(*u.HasHistory)
	}
	return patch
}

type articleRow struct {
	ID          string     `json:"id"`
	SourceID    string     `json:"mp_id"`
	Title       string     `json:"title"`
	ImageURL    string     `json:"pic_url"`
	PublishedAt int64      `json:"publish_time"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func newArticleRow(in repository.ArticleCreate) articleRow {
	return articleRow{
		ID:          in.ID,
		SourceID:    in.SourceID,
		Title:       in.Title,
		ImageURL:    in.ImageURL,
		PublishedAt: in.PublishedAt,
	}
}

func (r articleRow) toEntity() *entity.Article {
	a := &entity.Article{
		ID:          r.ID,
		SourceID:    r.SourceID,
		Title:       r.Title,
		ImageURL:    r.ImageURL,
		PublishedAt: r.PublishedAt,
	}
	if r.CreatedAt != nil {
		a.CreatedAt = *r.CreatedAt
	}
	if r.UpdatedAt != nil {
		a.UpdatedAt = *r.UpdatedAt
	}
	return a
}

func articlePatch(u repository.ArticleUpdate, now time.Time) map[string]any {
	patch := map[string]any{articleColumns.UpdatedAt: now.UTC()}
	if u.Title != nil {
		patch[articleColumns.Title] = *u.Title
	}
	if u.ImageURL != nil {
		patch[articleColumns.ImageURL] = *u.ImageURL
	}
	if u.PublishedAt != nil {
		patch[articleColumns.PublishedAt] = *u.PublishedAt
	}
	return patch
}
