package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/repository"
)

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// Store is the relational backend.
type Store struct {
	*SourceRepo
	*ArticleRepo
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) repository.Store {
	return &Store{
		SourceRepo:  &SourceRepo{db: db},
		ArticleRepo: &ArticleRepo{db: db},
		db:          db,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("Ping: %w", err)
	}
	return nil
}

// translateError maps driver signals onto the canonical repository errors.
// Anything else is returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
	}
	return err
}
