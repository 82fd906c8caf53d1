// Package repository defines the persistence contract shared by every backend.
//
// Backends translate their native signals into the canonical errors below
// (and entity.ErrNotFound) at their own boundary; callers never inspect
// backend-specific error shapes.
package repository

import (
	"context"
	"errors"
	"log/slog"
)

// ErrConflict reports a create that collided with an existing identifier.
var ErrConflict = errors.New("entity already exists")

// Store is the single persistence contract the pipeline runs against.
type Store interface {
	SourceRepository
	ArticleRepository
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// CreateOrUpdate runs create and, if it fails with ErrConflict, runs update
// instead. It covers both a plain duplicate and the race where a concurrent
// create won between an existence check and the insert.
func CreateOrUpdate[T any](
	ctx context.Context,
	entityName, id string,
	create func(context.Context) (T, error),
	update func(context.Context) (T, error),
) (T, error) {
	v, err := create(ctx)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrConflict) {
		var zero T
		return zero, err
	}

	slog.Default().Debug("create conflicted, applying as update",
		slog.String("entity", entityName),
		slog.String("id", id))
	return update(ctx)
}
