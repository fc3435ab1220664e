package aeris

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestResetParsesURLAndHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/cats/7?sort=asc", nil)
	r.Header.Set("X-Trace", "abc")

	req := newRequest()
	req.reset(nil, r)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "abc", req.Header.Get("X-Trace"))
	assert.Equal(t, "asc", req.QueryValue("sort"))
}

func TestRequestPathStripsRootPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/sub/cats/7", nil)
	req := newRequest()
	req.reset(nil, r)
	req.RootPath = "/sub"

	assert.Equal(t, "/cats/7", req.Path())
}

func TestRequestCookiesParsedLazily(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Cookie", "sid=abc; theme=dark")

	req := newRequest()
	req.reset(nil, r)

	v, ok := req.Cookie("sid")
	require.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestRequestPushWithoutPusherReturnsErrNotSupported(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	req := newRequest()
	req.reset(nil, r)

	err := req.Push("/static/app.css", nil)
	assert.Equal(t, http.ErrNotSupported, err)
}

func TestRequestBodyBytesBuffersASGIContent(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello"))
	req := newRequest()
	req.reset(nil, r)

	data, err := req.BodyBytes()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	again, err := req.BodyBytes()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(again))
}
