package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/repository"
)

/* ───────── 1. CreateOrUpdate ───────── */

func TestCreateOrUpdate(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		createErr   error
		wantUpdated bool
		wantErr     error
	}{
		{name: "create succeeds", createErr: nil},
		{name: "conflict converts to update", createErr: fmt.Errorf("insert: %w", repository.ErrConflict), wantUpdated: true},
		{name: "other errors propagate", createErr: boom, wantErr: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := false
			got, err := repository.CreateOrUpdate(context.Background(), "article", "a1",
				func(context.Context) (string, error) {
					if tt.createErr != nil {
						return "", tt.createErr
					}
					return "created", nil
				},
				func(context.Context) (string, error) {
					updated = true
					return "updated", nil
				})

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err=%v, want %v", err, tt.wantErr)
			}
			if updated != tt.wantUpdated {
				t.Fatalf("updated=%v, want %v", updated, tt.wantUpdated)
			}
			if err == nil && tt.wantUpdated && got != "updated" {
				t.Fatalf("got %q", got)
			}
		})
	}
}

/* ───────── 2. payload helpers ───────── */

func TestDedupeArticles_FirstWins(t *testing.T) {
	in := []repository.ArticleCreate{
		{ID: "a", Title: "first"},
		{ID: "b", Title: "b"},
		{ID: "a", Title: "second"},
	}
	want := []repository.ArticleCreate{
		{ID: "a", Title: "first"},
		{ID: "b", Title: "b"},
	}
	if diff := cmp.Diff(want, repository.DedupeArticles(in)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSourceCreate_Defaults(t *testing.T) {
	src := repository.SourceCreate{ID: "s1", Name: "n"}.Normalize()
	if src.Status != entity.SourceActive || src.HasHistory != entity.HistoryAvailable {
		t.Fatalf("defaults not applied: %+v", src)
	}

	disabled := entity.SourceDisabled
	src = repository.SourceCreate{ID: "s1", Name: "n", Status: &disabled}.Normalize()
	if src.Status != entity.SourceDisabled {
		t.Fatalf("explicit status ignored: %+v", src)
	}
}

func TestSourceUpdate_Apply(t *testing.T) {
	name := "renamed"
	var synced int64 = 42
	base := entity.Source{ID: "s1", Name: "old", Description: "keep", LastSyncedAt: 1}

	got := repository.SourceUpdate{Name: &name, LastSyncedAt: &synced}.Apply(base)
	want := entity.Source{ID: "s1", Name: "renamed", Description: "keep", LastSyncedAt: 42}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if !(repository.SourceUpdate{}).IsEmpty() {
		t.Fatal("zero update should be empty")
	}
}

func TestArticleQuery_EffectiveLimit(t *testing.T) {
	cases := map[int]int{0: repository.DefaultArticleLimit, -5: repository.DefaultArticleLimit, 7: 7, 5000: repository.MaxArticleLimit}
	for in, want := range cases {
		if got := (repository.ArticleQuery{Limit: in}).EffectiveLimit(); got != want {
			t.Fatalf("EffectiveLimit(%d)=%d, want %d", in, got, want)
		}
	}
}
