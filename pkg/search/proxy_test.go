package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillforge/pkg/errors"
)

func TestQuery_UnconfiguredReturnsTypedError(t *testing.T) {
	c := New("", "")
	_, err := c.Query(context.Background(), "golang")
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeSearchUnconfigured, code)
}

func TestQuery_SuccessDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"results":["a","b"]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	result, err := c.Query(context.Background(), "golang")
	require.NoError(t, err)
	m, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, m, "results")
}

func TestQuery_NonSuccessStatusReturnsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Query(context.Background(), "golang")
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeSearchHTTPError, code)
}
