package responsewriter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseWriter_DefaultsTo200(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	n, err := w.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusOK, w.StatusCode())
	assert.Equal(t, 5, w.BytesWritten())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResponseWriter_FirstHeaderWins(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	w.WriteHeader(http.StatusBadRequest)
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("a"))
	_, _ = w.Write([]byte("bc"))

	assert.Equal(t, http.StatusBadRequest, w.StatusCode())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 3, w.BytesWritten())
	assert.Equal(t, "abc", rec.Body.String())
}

func TestWrap_Idempotent(t *testing.T) {
	w := Wrap(httptest.NewRecorder())
	assert.Same(t, w, Wrap(w))
}

func TestResponseWriter_FlushAndUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	w.Flush()
	assert.True(t, rec.Flushed)
	assert.Equal(t, http.StatusOK, w.StatusCode())
	assert.Same(t, rec, w.Unwrap())
}
