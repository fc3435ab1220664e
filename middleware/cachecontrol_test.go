package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeris.dev/aeris"
	"aeris.dev/aeris/middleware"
)

func TestCacheControlSetsPublicMaxAge(t *testing.T) {
	app := aeris.NewApplication(aeris.DefaultConfig())
	require.NoError(t, app.Use(aeris.CategoryMessage, 0, "cache", middleware.CacheControl(middleware.CacheControlConfig{
		Public: true,
		MaxAge: 300,
	})))
	require.NoError(t, app.Handle(http.MethodGet, "/", func(req *aeris.Request) (string, error) { return "ok", nil }))

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
}

func TestCacheControlNoStoreSetsPragma(t *testing.T) {
	app := aeris.NewApplication(aeris.DefaultConfig())
	require.NoError(t, app.Use(aeris.CategoryMessage, 0, "cache", middleware.CacheControl(middleware.CacheControlConfig{
		NoStore: true,
	})))
	require.NoError(t, app.Handle(http.MethodGet, "/", func(req *aeris.Request) (string, error) { return "ok", nil }))

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
}

func TestCacheControlDoesNotOverrideHandlerHeader(t *testing.T) {
	app := aeris.NewApplication(aeris.DefaultConfig())
	require.NoError(t, app.Use(aeris.CategoryMessage, 0, "cache", middleware.CacheControl(middleware.CacheControlConfig{
		Public: true,
		MaxAge: 300,
	})))
	require.NoError(t, app.Handle(http.MethodGet, "/", func(req *aeris.Request) (*aeris.Response, error) {
		resp := aeris.Text("ok")
		resp.Header.Set("Cache-Control", "private, max-age=0")
		return resp, nil
	}))

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "private, max-age=0", rec.Header().Get("Cache-Control"))
}
