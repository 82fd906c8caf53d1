package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/repository"
)

const sourceColumns = `id, name, cover_image_url, description, status, last_synced_at, updated_at, has_history`

type sourceRow struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	CoverImageURL string `db:"cover_image_url"`
	Description   string `db:"description"`
	Status        int16  `db:"status"`
	LastSyncedAt  int64  `db:"last_synced_at"`
	UpdatedAt     int64  `db:"updated_at"`
	HasHistory    int16  `db:"has_history"`
}

func (r sourceRow) toEntity() *entity.Source {
	return &entity.Source{
		ID:            r.ID,
		Name:          r.Name,
		CoverImageURL: r.CoverImageURL,
		Description:   r.Description,
		Status:        entity.SourceStatus(r.Status),
		LastSyncedAt:  r.LastSyncedAt,
		UpdatedAt:     r.UpdatedAt,
		HasHistory:    entity.HistoryFlag(r.HasHistory),
	}
}

func sourcesFromRows(rows []sourceRow) []*entity.Source {
	out := make([]*entity.Source, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out
}

type SourceRepo struct {
	db *sqlx.DB
}

func NewSourceRepo(db *sqlx.DB) repository.SourceRepository {
	return &SourceRepo{db: db}
}

func (repo *SourceRepo) GetSource(ctx context.Context, id string) (*entity.Source, error) {
	const query = `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1 LIMIT 1`
	var row sourceRow
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("GetSource: %w", translateError(err))
	}
	return row.toEntity(), nil
}

func (repo *SourceRepo) ListSources(ctx context.Context, status entity.SourceStatus) ([]*entity.Source, error) {
	const query = `SELECT ` + sourceColumns + ` FROM sources WHERE status = $1 ORDER BY id ASC`
	var rows []sourceRow
	if err := repo.db.SelectContext(ctx, &rows, query, int16(status)); err != nil {
		return nil, fmt.Errorf("ListSources: %w", err)
	}
	return sourcesFromRows(rows), nil
}

func (repo *SourceRepo) ListActiveSources(ctx context.Context, excludeIDs []string) ([]*entity.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE status = ?`
	args := []any{int16(entity.SourceActive)}
	if len(excludeIDs) > 0 {
		query += ` AND id NOT IN (?)`
		args = append(args, excludeIDs)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, repository.ActiveSourcePageSize)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListActiveSources: %w", err)
	}

	var rows []sourceRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("ListActiveSources: %w", err)
	}
	return sourcesFromRows(rows), nil
}

func (repo *SourceRepo) CreateSource(ctx context.Context, in repository.SourceCreate) (*entity.Source, error) {
	src := in.Normalize()
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("CreateSource: %w", err)
	}

	return repository.CreateOrUpdate(ctx, "source", in.ID,
		func(ctx context.Context) (*entity.Source, error) {
			return repo.insertSource(ctx, src)
		},
		func(ctx context.Context) (*entity.Source, error) {
			return repo.UpdateSource(ctx, in.ID, in.AsUpdate())
		})
}

func (repo *SourceRepo) insertSource(ctx context.Context, src *entity.Source) (*entity.Source, error) {
	const query = `
INSERT INTO sources (` + sourceColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + sourceColumns

	var row sourceRow
	err := repo.db.GetContext(ctx, &row, query,
		src.ID, src.Name, src.CoverImageURL, src.Description,
		int16(src.Status), src.LastSyncedAt, src.UpdatedAt, int16(src.HasHistory),
	)
	if err != nil {
		return nil, fmt.Errorf("insertSource: %w", translateError(err))
	}
	return row.toEntity(), nil
}

func (repo *SourceRepo) UpdateSource(ctx context.Context, id string, in repository.SourceUpdate) (*entity.Source, error) {
	if in.IsEmpty() {
		return repo.GetSource(ctx, id)
	}

	var qb queryBuilder
	if in.Name != nil {
		qb.set("name", *in.Name)
	}
	if in.CoverImageURL != nil {
		qb.set("cover_image_url", *in.CoverImageURL)
	}
	if in.Description != nil {
		qb.set("description", *in.Description)
	}
	if in.Status != nil {
		qb.set("status", int16(*in.Status))
	}
	if in.LastSyncedAt != nil {
		qb.set("last_synced_at", *in.LastSyncedAt)
	}
	if in.UpdatedAt != nil {
		qb.set("updated_at", *in.UpdatedAt)
	}
	if in.HasHistory != nil {
		qb.set("has_history", int16(*in.HasHistory))
	}
	qb.where("id", "=", id)

	query := `UPDATE sources SET ` + qb.setClause() + qb.whereClause() + ` RETURNING ` + sourceColumns
	var row sourceRow
	if err := repo.db.GetContext(ctx, &row, query, qb.args...); err != nil {
		return nil, fmt.Errorf("UpdateSource: %w", translateError(err))
	}
	return row.toEntity(), nil
}

func (repo *SourceRepo) DeleteSource(ctx context.Context, id string) error {
	const query = `DELETE FROM sources WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("DeleteSource: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteSource: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("DeleteSource: %w", entity.ErrNotFound)
	}
	return nil
}
