package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/infra/adapter/persistence/postgres"
	"feedrelay/internal/repository"
)

var articleCols = []string{"id", "source_id", "title", "image_url", "published_at", "created_at", "updated_at"}

func articleRows(arts ...*entity.Article) *sqlmock.Rows {
	rows := sqlmock.NewRows(articleCols)
	for _, a := range arts {
		rows.AddRow(a.ID, a.SourceID, a.Title, a.ImageURL, a.PublishedAt, a.CreatedAt, a.UpdatedAt)
	}
	return rows
}

func sampleArticle(id string, published int64) *entity.Article {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &entity.Article{
		ID: id, SourceID: "S1", Title: "title " + id, ImageURL: "https://img/" + id,
		PublishedAt: published, CreatedAt: ts, UpdatedAt: ts,
	}
}

/* ──────────────────────────────── 1. GetArticle ──────────────────────────────── */

func TestArticleRepo_GetArticle(t *testing.T) {
	db, mock := newMock(t)
	want := sampleArticle("A1", 1000)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM articles WHERE id = $1`)).
		WithArgs("A1").
		WillReturnRows(articleRows(want))

	got, err := postgres.NewArticleRepo(db).GetArticle(context.Background(), "A1")
	if err != nil {
		t.Fatalf("GetArticle err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

/* ──────────────────────────────── 2. ListArticles ──────────────────────────────── */

func TestArticleRepo_ListArticles_Cursor(t *testing.T) {
	db, mock := newMock(t)
	cursor := sampleArticle("A3", 3000)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM articles WHERE id = $1`)).
		WithArgs("A3").
		WillReturnRows(articleRows(cursor))
	mock.ExpectQuery(regexp.QuoteMeta(
		`FROM articles WHERE source_id = $1 AND published_at < $2 ORDER BY published_at DESC, id DESC LIMIT $3`)).
		WithArgs("S1", int64(3000), int64(10)).
		WillReturnRows(articleRows(sampleArticle("A2", 2000), sampleArticle("A1", 1000)))

	got, err := postgres.NewArticleRepo(db).ListArticles(context.Background(),
		repository.ArticleQuery{Limit: 10, Cursor: "A3", SourceID: "S1"})
	if err != nil {
		t.Fatalf("ListArticles err=%v", err)
	}
	if len(got) != 2 || got[0].ID != "A2" || got[1].ID != "A1" {
		t.Fatalf("unexpected order %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_ListArticles_UnknownCursor(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM articles WHERE id`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := postgres.NewArticleRepo(db).ListArticles(context.Background(), repository.ArticleQuery{Cursor: "ghost"})
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestArticleRepo_ListArticlesBySource_DefaultLimit(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE source_id = $1 ORDER BY published_at DESC, id DESC LIMIT $2`)).
		WithArgs("S1", int64(repository.DefaultArticleLimit)).
		WillReturnRows(articleRows())

	got, err := postgres.NewArticleRepo(db).ListArticlesBySource(context.Background(), "S1", 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("err=%v len=%d", err, len(got))
	}
}

/* ──────────────────────────────── 3. CreateArticle ──────────────────────────────── */

func TestArticleRepo_CreateArticle_ConflictBecomesUpdate(t *testing.T) {
	db, mock := newMock(t)
	updated := sampleArticle("A1", 1000)
	updated.Title = "second"

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO articles`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE articles SET title = $1, image_url = $2, published_at = $3, updated_at = now() WHERE id = $4`)).
		WithArgs("second", updated.ImageURL, int64(1000), "A1").
		WillReturnRows(articleRows(updated))

	got, err := postgres.NewArticleRepo(db).CreateArticle(context.Background(), repository.ArticleCreate{
		ID: "A1", SourceID: "S1", Title: "second", ImageURL: updated.ImageURL, PublishedAt: 1000,
	})
	if err != nil {
		t.Fatalf("CreateArticle err=%v", err)
	}
	if got.Title != "second" {
		t.Fatalf("title=%q", got.Title)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_CreateArticle_OtherErrorPropagates(t *testing.T) {
	db, mock := newMock(t)
	fk := &pgconn.PgError{Code: "23503"}
	mock.ExpectQuery(`INSERT INTO articles`).WillReturnError(fk)

	_, err := postgres.NewArticleRepo(db).CreateArticle(context.Background(), repository.ArticleCreate{
		ID: "A1", SourceID: "S1", Title: "t",
	})
	if !errors.As(err, new(*pgconn.PgError)) || errors.Is(err, repository.ErrConflict) {
		t.Fatalf("err=%v, want raw PgError", err)
	}
}

/* ──────────────────────────────── 4. CreateArticles ──────────────────────────────── */

func TestArticleRepo_CreateArticles_DedupesAndSkipsExisting(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		`VALUES ($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10) ON CONFLICT (id) DO NOTHING`)).
		WithArgs("A1", "S1", "one", "", int64(1), "A2", "S1", "two", "", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := postgres.NewArticleRepo(db).CreateArticles(context.Background(), []repository.ArticleCreate{
		{ID: "A1", SourceID: "S1", Title: "one", PublishedAt: 1},
		{ID: "A2", SourceID: "S1", Title: "two", PublishedAt: 2},
		{ID: "A1", SourceID: "S1", Title: "dup", PublishedAt: 3},
	})
	if err != nil {
		t.Fatalf("CreateArticles err=%v", err)
	}
	if n != 1 {
		t.Fatalf("inserted=%d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_CreateArticles_Empty(t *testing.T) {
	db, mock := newMock(t)
	n, err := postgres.NewArticleRepo(db).CreateArticles(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_CreateArticles_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO articles`).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := postgres.NewArticleRepo(db).CreateArticles(context.Background(), []repository.ArticleCreate{
		{ID: "A1", SourceID: "S1", Title: "one"},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── 5. UpsertArticle ──────────────────────────────── */

func TestArticleRepo_UpsertArticle_PreservesOmittedFields(t *testing.T) {
	db, mock := newMock(t)
	stored := sampleArticle("A1", 1000)
	stored.Title = "new title"
	title := "new title"

	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (id) DO UPDATE SET`)).
		WithArgs("A1", "S1", "t", "", int64(5), "new title", nil, nil).
		WillReturnRows(articleRows(stored))

	got, err := postgres.NewArticleRepo(db).UpsertArticle(context.Background(), "A1",
		repository.ArticleCreate{SourceID: "S1", Title: "t", PublishedAt: 5},
		repository.ArticleUpdate{Title: &title})
	if err != nil {
		t.Fatalf("UpsertArticle err=%v", err)
	}
	if got.Title != "new title" || got.ImageURL != stored.ImageURL || got.PublishedAt != 1000 {
		t.Fatalf("unexpected %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── 6. DeleteArticle ──────────────────────────────── */

func TestArticleRepo_DeleteArticle_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM articles WHERE id = $1`)).
		WithArgs("A9").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := postgres.NewArticleRepo(db).DeleteArticle(context.Background(), "A9"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

/* ──────────────────────────────── 7. Store ──────────────────────────────── */

func TestStore_Ping(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = mockDB.Close() }()
	mock.ExpectPing()

	db := sqlxNew(mockDB)
	if err := postgres.NewStore(db).Ping(context.Background()); err != nil {
		t.Fatalf("Ping err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
