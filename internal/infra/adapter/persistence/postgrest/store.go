package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"feedrelay/internal/repository"
)

// Store is the REST table API backend.
type Store struct {
	client *Client
	now    func() time.Time
}

func NewStore(client *Client) repository.Store {
	return &Store{client: client, now: time.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	var rows []struct {
		ID string `json:"id"`
	}
	err := s.client.do(ctx, request{
		method: http.MethodGet,
		table:  s.client.Table(tableSources),
		query:  newQuery().selectCols(sourceColumns.ID).limit(1).values(),
	}, &rows)
	if err != nil {
		return fmt.Errorf("Ping: %w", err)
	}
	return nil
}
