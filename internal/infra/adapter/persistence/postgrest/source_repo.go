package postgrest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/repository"
)

func (s *Store) sourcesTable() string {
	return s.client.Table(tableSources)
}

func (s *Store) GetSource(ctx context.Context, id string) (*entity.Source, error) {
	var row sourceRow
	err := s.client.do(ctx, request{
		method: http.MethodGet,
		table:  s.sourcesTable(),
		query:  newQuery().selectCols("*").eq(sourceColumns.ID, id).values(),
		single: true,
	}, &row)
	if err != nil {
		return nil, fmt.Errorf("GetSource: %w", err)
	}
	return row.toEntity(), nil
}

func (s *Store) ListSources(ctx context.Context, status entity.SourceStatus) ([]*entity.Source, error) {
	q := newQuery().selectCols("*").
		eq(sourceColumns.Status, int(status)).
		order(sourceColumns.ID + ".asc")
	return s.listSources(ctx, "ListSources", q)
}

func (s *Store) ListActiveSources(ctx context.Context, excludeIDs []string) ([]*entity.Source, error) {
	q := newQuery().selectCols("*").eq(sourceColumns.Status, int(entity.SourceActive))
	if len(excludeIDs) > 0 {
		q.notIn(sourceColumns.ID, excludeIDs)
	}
	q.order(sourceColumns.ID + ".asc").limit(repository.ActiveSourcePageSize)
	return s.listSources(ctx, "ListActiveSources", q)
}

func (s *Store) listSources(ctx context.Context, op string, q *query) ([]*entity.Source, error) {
	var rows []sourceRow
	err := s.client.do(ctx, request{
		method: http.MethodGet,
		table:  s.sourcesTable(),
		query:  q.values(),
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]*entity.Source, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out, nil
}

// CreateSource emulates upsert: an existing id is updated; otherwise the row
// is inserted, and an insert that loses a race is retried as an update.
func (s *Store) CreateSource(ctx context.Context, in repository.SourceCreate) (*entity.Source, error) {
	src := in.Normalize()
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("CreateSource: %w", err)
	}

	_, err := s.GetSource(ctx, in.ID)
	switch {
	case err == nil:
		return s.UpdateSource(ctx, in.ID, in.AsUpdate())
	case !errors.Is(err, entity.ErrNotFound):
		return nil, fmt.Errorf("CreateSource: %w", err)
	}

	return repository.CreateOrUpdate(ctx, "source", in.ID,
		func(ctx context.Context) (*entity.Source, error) {
			var row sourceRow
			err := s.client.do(ctx, request{
				method: http.MethodPost,
				table:  s.sourcesTable(),
				body:   newSourceRow(src),
				single: true,
				prefer: preferRepresentation,
			}, &row)
			if err != nil {
				return nil, fmt.Errorf("insertSource: %w", err)
			}
			return row.toEntity(), nil
		},
		func(ctx context.Context) (*entity.Source, error) {
			return s.UpdateSource(ctx, in.ID, in.AsUpdate())
		})
}

func (s *Store) UpdateSource(ctx context.Context, id string, in repository.SourceUpdate) (*entity.Source, error) {
	if in.IsEmpty() {
		return s.GetSource(ctx, id)
	}

	var row sourceRow
	err := s.client.do(ctx, request{
		method: http.MethodPatch,
		table:  s.sourcesTable(),
		query:  newQuery().eq(sourceColumns.ID, id).values(),
		body:   sourcePatch(in, s.now()),
		single: true,
		prefer: preferRepresentation,
	}, &row)
	if err != nil {
		return nil, fmt.Errorf("UpdateSource: %w", err)
	}
	return row.toEntity(), nil
}

func (s *Store) DeleteSource(ctx context.Context, id string) error {
	var rows []sourceRow
	err := s.client.do(ctx, request{
		method: http.MethodDelete,
		table:  s.sourcesTable(),
		query:  newQuery().eq(sourceColumns.ID, id).values(),
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return fmt.Errorf("DeleteSource: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("DeleteSource: %w", entity.ErrNotFound)
	}
	return nil
}
