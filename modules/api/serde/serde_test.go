package serde

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Title string `json:"title"`
}

func body(s string) io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }

func TestParseJsonBody(t *testing.T) {
	var p payload
	require.NoError(t, ParseJsonBody(body(`{"title":"x"}`), &p))
	assert.Equal(t, "x", p.Title)

	assert.Error(t, ParseJsonBody(body(`{"title":"x","owner":"eve"}`), &p))
	assert.ErrorIs(t, ParseJsonBody(body(`{"title":"x"} {"title":"y"}`), &p), ErrTrailingData)
	assert.Error(t, ParseJsonBody(body(`{`), &p))
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, payload{Title: "x"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"title":"x"}`, rec.Body.String())
}
