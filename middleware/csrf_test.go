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

func newCSRFApp(t *testing.T) *aeris.Application {
	t.Helper()
	app := aeris.NewApplication(aeris.DefaultConfig())
	require.NoError(t, app.Use(aeris.CategoryMessage, 0, "csrf", middleware.CSRF(middleware.CSRFConfig{})))
	require.NoError(t, app.Handle(http.MethodGet, "/", func(req *aeris.Request) error { return nil }))
	require.NoError(t, app.Handle(http.MethodPost, "/", func(req *aeris.Request) error { return nil }))
	return app
}

func TestCSRFSetsCookieOnSafeRequest(t *testing.T) {
	app := newCSRFApp(t)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, 204, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestCSRFRejectsUnsafeRequestWithoutCookie(t *testing.T) {
	app := newCSRFApp(t)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, 401, rec.Code)
	assert.Equal(t, "Missing anti-forgery token cookie", rec.Header().Get("Reason"))
}

func TestCSRFRejectsUnsafeRequestWithMismatchedToken(t *testing.T) {
	app := newCSRFApp(t)

	rec1 := httptest.NewRecorder()
	app.ServeHTTP(rec1, httptest.NewRequest(http.MethodGet, "/", nil))

	var cookie *http.Cookie
	for _, c := range rec1.Result().Cookies() {
		if c.Name == "aftoken" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	rec2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", "not-the-right-token")
	app.ServeHTTP(rec2, req)

	assert.Equal(t, 401, rec2.Code)
	assert.Equal(t, "Invalid anti-forgery token", rec2.Header().Get("Reason"))
}

func TestCSRFAcceptsMatchingTokenRoundtrip(t *testing.T) {
	app := newCSRFApp(t)

	rec1 := httptest.NewRecorder()
	app.ServeHTTP(rec1, httptest.NewRequest(http.MethodGet, "/", nil))

	var cookie *http.Cookie
	for _, c := range rec1.Result().Cookies() {
		if c.Name == "aftoken" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	rec2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", cookie.Value)
	app.ServeHTTP(rec2, req)

	assert.Equal(t, 204, rec2.Code)
}

func TestCSRFSkipBypassesCheck(t *testing.T) {
	app := aeris.NewApplication(aeris.DefaultConfig())
	require.NoError(t, app.Use(aeris.CategoryMessage, 0, "csrf", middleware.CSRF(middleware.CSRFConfig{
		Skip: func(req *aeris.Request) bool { return req.Header.Get("Authorization") != "" },
	})))
	require.NoError(t, app.Handle(http.MethodPost, "/", func(req *aeris.Request) error { return nil }))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	app.ServeHTTP(rec, req)

	assert.Equal(t, 204, rec.Code)
}
