package postgrest

import (
	"fmt"
	"net/http"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/repository"
)

const (
	// codeNoRows is returned when a single object was requested and no row matched.
	codeNoRows = "PGRST116"
	// codeUniqueViolation is the Postgres SQLSTATE passed through by PostgREST.
	codeUniqueViolation = "23505"
)

// APIError is an error response from the table API.
//
// It unwraps to entity.ErrNotFound for missing-row responses and to
// repository.ErrConflict for unique violations; any other error unwraps to nil
// and is returned to callers unchanged.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("postgrest: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("postgrest: %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Code == codeNoRows:
		return entity.ErrNotFound
	case e.Code == codeUniqueViolation, e.Code == "" && e.StatusCode == http.StatusConflict:
		return repository.ErrConflict
	}
	return nil
}
