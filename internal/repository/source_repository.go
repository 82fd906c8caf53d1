package repository

import (
	"context"

	"feedrelay/internal/domain/entity"
)

// ActiveSourcePageSize caps ListActiveSources.
const ActiveSourcePageSize = 10

// SourceCreate is the full payload for creating a source.
// Nil Status and HasHistory take the defaults applied by Normalize.
type SourceCreate struct {
	ID            string
	Name          string
	CoverImageURL string
	Description   string
	Status        *entity.SourceStatus
	LastSyncedAt  int64
	UpdatedAt     int64
	HasHistory    *entity.HistoryFlag
}

// Normalize applies defaults and returns the source the payload describes.
func (c SourceCreate) Normalize() *entity.Source {
	src := &entity.Source{
		ID:            c.ID,
		Name:          c.Name,
		CoverImageURL: c.CoverImageURL,
		Description:   c.Description,
		Status:        entity.SourceActive,
		LastSyncedAt:  c.LastSyncedAt,
		UpdatedAt:     c.UpdatedAt,
		HasHistory:    entity.HistoryAvailable,
	}
	if c.Status != nil {
		src.Status = *c.Status
	}
	if c.HasHistory != nil {
		src.HasHistory = *c.HasHistory
	}
	return src
}

// AsUpdate converts the payload into the update applied when the id already exists.
func (c SourceCreate) AsUpdate() SourceUpdate {
	src := c.Normalize()
	return SourceUpdate{
		Name:          &src.Name,
		CoverImageURL: &src.CoverImageURL,
		Description:   &src.Description,
		Status:        &src.Status,
		LastSyncedAt:  &src.LastSyncedAt,
		UpdatedAt:     &src.UpdatedAt,
		HasHistory:    &src.HasHistory,
	}
}

// SourceUpdate carries the mutable subset of a source. Nil fields are left untouched.
type SourceUpdate struct {
	Name          *string
	CoverImageURL *string
	Description   *string
	Status        *entity.SourceStatus
	LastSyncedAt  *int64
	UpdatedAt     *int64
	HasHistory    *entity.HistoryFlag
}

// IsEmpty reports whether the update changes nothing.
func (u SourceUpdate) IsEmpty() bool {
	return u.Name == nil && u.CoverImageURL == nil && u.Description == nil &&
		u.Status == nil && u.LastSyncedAt == nil && u.UpdatedAt == nil && u.HasHistory == nil
}

// Apply returns a copy of src with the non-nil fields of u written over it.
func (u SourceUpdate) Apply(src entity.Source) entity.Source {
	if u.Name != nil {
		src.Name = *u.Name
	}
	if u.CoverImageURL != nil {
		src.CoverImageURL = *u.CoverImageURL
	}
	if u.Description != nil {
		src.Description = *u.Description
	}
	if u.Status != nil {
		src.Status = *u.Status
	}
	if u.LastSyncedAt != nil {
		src.LastSyncedAt = *u.LastSyncedAt
	}
	if u.UpdatedAt != nil {
		src.UpdatedAt = *u.UpdatedAt
	}
	if u.HasHistory != nil {
		src.HasHistory = *u.HasHistory
	}
	return src
}

type SourceRepository interface {
	GetSource(ctx context.Context, id string) (*entity.Source, error)
	// ListSources returns every source with the given status, ordered by id.
	ListSources(ctx context.Context, status entity.SourceStatus) ([]*entity.Source, error)
	// ListActiveSources returns at most ActiveSourcePageSize active sources
	// whose id is not in excludeIDs.
	ListActiveSources(ctx context.Context, excludeIDs []string) ([]*entity.Source, error)
	// CreateSource inserts a source, converting to an update when the id exists.
	CreateSource(ctx context.Context, in SourceCreate) (*entity.Source, error)
	UpdateSource(ctx context.Context, id string, in SourceUpdate) (*entity.Source, error)
	DeleteSource(ctx context.Context, id string) error
}
